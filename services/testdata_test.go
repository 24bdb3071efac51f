package services

// Identifiers shared by the tests in this package. The CIP-105 and CIP-129
// DRep IDs encode the same key hash.
const (
	testDRepHex    = "101112131415161718191a1b1c1d1e1f202122232425262728292a2b"
	testDRep105    = "drep1zqg3yyc5z5tpwxqergd3c8g7ruszzg3rysjjvfeg9y4zk32vpvn"
	testDRep129    = "drep1yggpzysnzs23v9ccrydpk8qarc0jqgfzyvjz2f389q5j52c3cputh"
	testDRep2Hex   = "909192939495969798999a9b9c9d9e9fa0a1a2a3a4a5a6a7a8a9aaab"
	testDRep2105   = "drep1jzge9yu5jktf0xyen2dee8v7n7s2rg4r5jj6dfag4x42k3fwleq"
	testPoolHex    = "404142434445464748494a4b4c4d4e4f505152535455565758595a5b"
	testPoolBech32 = "pool1gpq5ys6yg4rywjzfff95cn2wfag9z5jn2324v46ct9d9k28wsn8"
	testCCHex      = "707172737475767778797a7b7c7d7e7f808182838485868788898a8b"
	testCCHot      = "cc_hot1qfc8zunnw36hvamc09a8klra0elcpqvzswzgtp583zyc4zcnqs8fg"
	testStakeAddr  = "stake1uyszzg3rysjjvfeg9y4zktpd9chnqvfjxv6r2d3h8qun5wcw2w92f"
)
