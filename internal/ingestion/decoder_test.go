package ingestion

import (
	"testing"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/riskconfig"
)

func TestDecoder_Kind(t *testing.T) {
	d := NewDecoder(testConfig())

	for _, ev := range riskconfig.AllEvents() {
		l := ethereum.Log{Topics: []string{ethereum.EventTopic(ev.Signature)}}
		if got := d.Kind(l); got != ev.Kind {
			t.Errorf("Kind(%s) = %s, want %s", ev.Signature, got, ev.Kind)
		}
	}

	if got := d.Kind(ethereum.Log{}); got != domain.TxKindUnknown {
		t.Errorf("Kind(no topics) = %s, want unknown", got)
	}
	unknown := ethereum.Log{Topics: []string{ethereum.EventTopic("Transfer(address,address,uint256)")}}
	if got := d.Kind(unknown); got != domain.TxKindUnknown {
		t.Errorf("Kind(Transfer) = %s, want unknown", got)
	}
}

func TestDecoder_TopicCaseInsensitive(t *testing.T) {
	d := NewDecoder(testConfig())
	topic := ethereum.EventTopic("Mint(address,uint256,uint256)")

	upper := "0x" + toUpperHex(topic[2:])
	if got := d.Kind(ethereum.Log{Topics: []string{upper}}); got != domain.TxKindSupply {
		t.Errorf("Kind(upper-case topic) = %s, want supply", got)
	}
}

func toUpperHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func TestDecoder_Decode(t *testing.T) {
	d := NewDecoder(testConfig())

	l := makeLog("0x5D3A536E4D6DBD6114CC1EAD35777BAB948E3643", "Borrow(address,uint256,uint256,uint256)", walletA, 16_000_000, 4)
	l.TxHash = "0xABCD"

	tx := d.Decode(l, "0x1111111111111111111111111111111111111111", 1_700_000_000)

	if tx.Market != "cDAI" {
		t.Errorf("Market = %s, want cDAI", tx.Market)
	}
	if tx.Kind != domain.TxKindBorrow {
		t.Errorf("Kind = %s, want borrow", tx.Kind)
	}
	if tx.Timestamp != 1_700_000_000_000 {
		t.Errorf("Timestamp = %d, want Unix ms", tx.Timestamp)
	}
	if tx.TxHash != "0xabcd" || tx.Wallet != walletA {
		t.Errorf("expected normalized hash and wallet, got %s %s", tx.TxHash, tx.Wallet)
	}
	if tx.MarketAddress != "0x5d3a536e4d6dbd6114cc1ead35777bab948e3643" {
		t.Errorf("MarketAddress = %s", tx.MarketAddress)
	}

	// Topics are copied.
	l.Topics[0] = "mutated"
	if tx.Topics[0] == "mutated" {
		t.Error("Decode must copy topics")
	}
}

func TestDecoder_DecodeUnknownMarket(t *testing.T) {
	d := NewDecoder(testConfig())

	l := makeLog("0x9999999999999999999999999999999999999999", "RepayBorrow(address,address,uint256,uint256,uint256)", walletA, 1, 0)
	tx := d.Decode(l, walletA, 1)
	if tx.Market != "RepayBorrow" {
		t.Errorf("Market = %s, want event label RepayBorrow", tx.Market)
	}
	if tx.Kind != domain.TxKindRepay {
		t.Errorf("Kind = %s, want repay", tx.Kind)
	}

	l.Topics = []string{"0xdeadbeef"}
	tx = d.Decode(l, walletA, 1)
	if tx.Market != "0x9999999999999999999999999999999999999999" {
		t.Errorf("Market = %s, want contract address", tx.Market)
	}
}

func TestDecoder_TopicFor(t *testing.T) {
	d := NewDecoder(testConfig())

	if got := d.TopicFor(domain.TxKindSupply, domain.ProtocolVersionV2); got != ethereum.EventTopic("Mint(address,uint256,uint256)") {
		t.Errorf("TopicFor(supply, v2) = %s", got)
	}
	if got := d.TopicFor(domain.TxKindLiquidation, domain.ProtocolVersionV3); got != ethereum.EventTopic("AbsorbDebt(address,address,uint256,uint256)") {
		t.Errorf("TopicFor(liquidation, v3) = %s", got)
	}
	if got := d.TopicFor(domain.TxKindUnknown, domain.ProtocolVersionV2); got != "" {
		t.Errorf("TopicFor(unknown) = %s, want empty", got)
	}
	if len(d.Topics()) != len(riskconfig.AllEvents()) {
		t.Errorf("Topics() = %d entries, want %d", len(d.Topics()), len(riskconfig.AllEvents()))
	}
}

func TestDecoder_MainnetTopics(t *testing.T) {
	d := NewDecoder(testConfig())

	tests := []struct {
		topic0  string
		kind    domain.TxKind
		version domain.ProtocolVersion
	}{
		{"0x4c209b5fc8ad50758f13e2e1088ba56a560dff690a1c6fef26394f4c03821c4f", domain.TxKindSupply, domain.ProtocolVersionV2},      // Mint
		{"0xe5b754fb1abb7f01b499791d0b820ae3b6af3424ac1c59768edb53f4ec31a929", domain.TxKindWithdraw, domain.ProtocolVersionV2},    // Redeem
		{"0x13ed6866d4e1ee6da46f845c46d7e54120883d75c5ea9a2dacc1c4ca8984ab80", domain.TxKindBorrow, domain.ProtocolVersionV2},      // Borrow
		{"0x1a2a22cb034d26d1854bdc6666a5b91fe25efbbb5dcad3b0355478d6f5c362a1", domain.TxKindRepay, domain.ProtocolVersionV2},       // RepayBorrow
		{"0x298637f684da70674f26509b10f07ec2fbc77a335ab1e7d6215a4b2484d8bb52", domain.TxKindLiquidation, domain.ProtocolVersionV2}, // LiquidateBorrow
		{"0xfa56f7b24f17183d81894d3ac2ee654e3c26388d17a28dbd9549b8114304e1f4", domain.TxKindSupply, domain.ProtocolVersionV3},      // SupplyCollateral
		{"0xd6d480d5b3068db003533b170d67561494d72e3bf9fa40a266471351ebba9e16", domain.TxKindWithdraw, domain.ProtocolVersionV3},    // WithdrawCollateral
		{"0x9b1bfa7fa9ee420a16e124f794c35ac9f90472acc99140eb2f6447c714cad8eb", domain.TxKindBorrow, domain.ProtocolVersionV3},      // Withdraw
		{"0xd1cf3d156d5f8f0d50f6c122ed609cec09d35c9b9fb3fff6ea0959134dae424e", domain.TxKindRepay, domain.ProtocolVersionV3},       // Supply
		{"0x1547a878dc89ad3c367b6338b4be6a65a5dd74fb77ae044da1e8747ef1f4f62f", domain.TxKindLiquidation, domain.ProtocolVersionV3}, // AbsorbDebt
	}

	for _, tt := range tests {
		if got := d.Kind(ethereum.Log{Topics: []string{tt.topic0}}); got != tt.kind {
			t.Errorf("Kind(%s) = %s, want %s", tt.topic0, got, tt.kind)
		}
		if got := d.TopicFor(tt.kind, tt.version); got != tt.topic0 {
			t.Errorf("TopicFor(%s, %s) = %s, want %s", tt.kind, tt.version, got, tt.topic0)
		}
	}
}
