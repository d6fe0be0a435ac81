// Package compiler turns static taxonomy configuration into a
// taxonomy.Schema.
//
// Definitions are normally written in CUE:
//
//	version: "2024-09-01"
//	order: ["wsuwp_university_category", "wsuwp_university_location"]
//
//	taxonomy: wsuwp_university_category: {
//		terms: {
//			"Sports": {
//				"Intercollegiate": ["Baseball", "Football"]
//				"Club": []
//			}
//			// A list at level 1 declares level-2 names with no leaves.
//			"Alumni": ["Alumni Association"]
//		}
//		directives: [{from: "Registar", to: "Registrar"}]
//	}
//
// Field order is declaration order and is preserved into the Definition.
// The same document may also be written as YAML (see DecodeYAML).
package compiler
