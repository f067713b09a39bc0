package ethereum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// subscribeServer confirms one eth_subscribe and then pushes notifications.
func subscribeServer(t *testing.T, notifications []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "eth_subscribe" {
			t.Errorf("expected eth_subscribe, got %s", req.Method)
		}
		if len(req.Params) != 2 || req.Params[0] != "logs" {
			t.Errorf("unexpected params %v", req.Params)
		}

		c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": "0xsub1"})
		// Give the client time to register the subscription channel
		time.Sleep(100 * time.Millisecond)
		for _, n := range notifications {
			c.WriteMessage(websocket.TextMessage, []byte(n))
		}

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	notif := `{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xsub1","result":{` +
		`"address":"0x5D3A536E4D6DbD6114cc1Ead35777bAB948E3643","topics":["0xaa"],"data":"0x01",` +
		`"blockNumber":"0xe4e1c0","transactionHash":"0xhash","logIndex":"0x2","removed":false}}}`
	other := `{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xother","result":{"blockNumber":"0x1"}}}`

	server := subscribeServer(t, []string{"not json", other, notif})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogFilter{
		Addresses: []string{"0x5D3A536E4D6DbD6114cc1Ead35777bAB948E3643"},
		Topics:    [][]string{{"0xaa"}},
	})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case l := <-ch:
		if l.BlockNumber != 15000000 {
			t.Errorf("expected block 15000000, got %d", l.BlockNumber)
		}
		if l.LogIndex != 2 || l.TxHash != "0xhash" {
			t.Errorf("unexpected log %+v", l)
		}
		if l.Address != "0x5d3a536e4d6dbd6114cc1ead35777bab948e3643" {
			t.Errorf("expected lowercased address, got %s", l.Address)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for log")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 50 * time.Millisecond
	client, err := NewWSClient(context.Background(), wsURL(server), &cfg, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeLogs(context.Background(), LogFilter{}); err == nil {
		t.Error("expected subscription timeout")
	}
}

func TestWSClient_CloseClosesChannels(t *testing.T) {
	server := subscribeServer(t, nil)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	ch, err := client.SubscribeLogs(context.Background(), LogFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	if _, err := client.SubscribeLogs(context.Background(), LogFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestSubscribeParams(t *testing.T) {
	params := subscribeParams(LogFilter{
		Addresses: []string{"0xa"},
		Topics:    [][]string{{"0xt0"}, nil, {"0xt2", "0xt3"}},
	})
	b, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `["logs",{"address":["0xa"],"topics":[["0xt0"],null,["0xt2","0xt3"]]}]`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestWSClient_DialError(t *testing.T) {
	if _, err := NewWSClient(context.Background(), "ws://127.0.0.1:1", nil, nil); err == nil {
		t.Error("expected dial error")
	}
}
