package ethereum

import (
	"strings"
	"testing"
)

func TestIsAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0xfaa0768bde629806739c3a4620656c5d26f44ef2", true},
		{"0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6", true},
		{"faa0768bde629806739c3a4620656c5d26f44ef2", false},
		{"0x1234", false},
		{"0xzzzz768bde629806739c3a4620656c5d26f44ef2", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsAddress(tt.in); got != tt.want {
			t.Errorf("IsAddress(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestEventTopic(t *testing.T) {
	// keccak256("Transfer(address,address,uint256)")
	want := "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	if got := EventTopic("Transfer(address,address,uint256)"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestAddressTopic(t *testing.T) {
	got := AddressTopic("0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6")
	want := "0x000000000000000000000000742d35cc6634c0532925a3b8d4c9db96c4b4d8b6"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestLogMentions(t *testing.T) {
	wallet := "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6"
	topic := AddressTopic(wallet)

	inTopic := Log{Topics: []string{"0xsig", strings.ToUpper(topic)}}
	if !inTopic.Mentions(wallet) {
		t.Error("expected match in indexed topic")
	}

	inData := Log{Topics: []string{"0xsig"}, Data: "0x" + topic[2:] + strings.Repeat("0", 64)}
	if !inData.Mentions(wallet) {
		t.Error("expected match in data")
	}

	secondWord := Log{Data: "0x" + strings.Repeat("0", 64) + strings.ToUpper(topic[2:])}
	if !secondWord.Mentions(wallet) {
		t.Error("expected match in second data word")
	}

	addr := strings.TrimPrefix(strings.ToLower(wallet), "0x")
	misaligned := Log{Data: "0x" + strings.Repeat("0", 26) + addr + strings.Repeat("0", 62)}
	if misaligned.Mentions(wallet) {
		t.Error("address straddling a word boundary must not match")
	}

	inAmount := Log{Data: "0x" + strings.Repeat("f", 24) + addr}
	if inAmount.Mentions(wallet) {
		t.Error("address bytes inside a non-address word must not match")
	}

	onlyTopic0 := Log{Topics: []string{topic}}
	if onlyTopic0.Mentions(wallet) {
		t.Error("topic0 is the event signature and must not match")
	}

	if (Log{Data: "0x00"}).Mentions("not-an-address") {
		t.Error("invalid wallet must not match")
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0x10", 16, false},
		{"0x", 0, false},
		{"42", 42, false},
		{"", 0, true},
		{"0xzz", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseQuantity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseQuantity(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseQuantity(%q): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}
