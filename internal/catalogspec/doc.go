// Package catalogspec loads generation catalogs written in CUE and applies
// them to an engine.
//
// A catalog file is unified with the embedded #Catalog schema:
//
//	default_base_uri: "ipfs://hidden/"
//	administrators: ["admin"]
//	generations: [
//		{name: "Genesis", base_uri: "ipfs://gen0/"},
//		{name: "Gold", price: 100, available: true},
//		{name: "Aura", auto_unlock: true, prerequisite: 1},
//	]
//
// Entry 0 configures the genesis tier; every later entry i becomes
// generation i. Prerequisites refer to entry indexes.
package catalogspec
