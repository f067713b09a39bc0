package wallets

// sampleWallets is the fallback list used when no sheet can be loaded.
var sampleWallets = []string{
	"0xfaa0768bde629806739c3a4620656c5d26f44ef2",
	"0x742d35cc6634c0532925a3b8d4c9db96c4b4d8b6",
	"0x1234567890123456789012345678901234567890",
	"0xabcdef1234567890abcdef1234567890abcdef12",
	"0x9876543210987654321098765432109876543210",
	"0x1111111111111111111111111111111111111111",
	"0x2222222222222222222222222222222222222222",
	"0x3333333333333333333333333333333333333333",
	"0x4444444444444444444444444444444444444444",
	"0x5555555555555555555555555555555555555555",
	"0x6666666666666666666666666666666666666666",
	"0x7777777777777777777777777777777777777777",
	"0x8888888888888888888888888888888888888888",
	"0x9999999999999999999999999999999999999999",
	"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	"0xcccccccccccccccccccccccccccccccccccccccc",
	"0xdddddddddddddddddddddddddddddddddddddddd",
	"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee",
	"0xffffffffffffffffffffffffffffffffffffffff",
}

// SampleWallets returns a copy of the built-in sample wallet list.
func SampleWallets() []string {
	return append([]string(nil), sampleWallets...)
}
