package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"media-notary-backend/internal/platform/ledger"
)

// TonAPI looks up executed transactions through the TonAPI HTTP API.
type TonAPI struct {
	tonapiBase  string
	tonapiToken string
	httpClient  *http.Client
}

func NewTonAPI(baseURL, apiToken string) *TonAPI {
	if baseURL == "" {
		baseURL = "https://tonapi.io"
	}
	return &TonAPI{tonapiBase: strings.TrimRight(baseURL, "/"), tonapiToken: apiToken, httpClient: &http.Client{Timeout: 8 * time.Second}}
}

type tonapiAccount struct {
	Address string `json:"address"`
}

type tonapiMessage struct {
	MsgType     string         `json:"msg_type"`
	Value       int64          `json:"value"`
	Bounced     bool           `json:"bounced"`
	Source      *tonapiAccount `json:"source"`
	Destination *tonapiAccount `json:"destination"`
}

type tonapiTransaction struct {
	Hash      string          `json:"hash"`
	Account   tonapiAccount   `json:"account"`
	Success   bool            `json:"success"`
	Aborted   bool            `json:"aborted"`
	TotalFees int64           `json:"total_fees"`
	InMsg     *tonapiMessage  `json:"in_msg"`
	OutMsgs   []tonapiMessage `json:"out_msgs"`
}

// tonapiTrace is a transaction together with the transactions its outgoing
// messages caused on the receiving accounts.
type tonapiTrace struct {
	Transaction tonapiTransaction `json:"transaction"`
	Children    []tonapiTrace     `json:"children"`
}

// GetTransaction resolves the trace started by hash. It returns
// ledger.ErrTransactionNotFound when TonAPI does not know the hash.
func (t *TonAPI) GetTransaction(ctx context.Context, hash string) (*ledger.Transaction, error) {
	u := t.tonapiBase + "/v2/traces/" + url.PathEscape(hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if t.tonapiToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.tonapiToken)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ledger.ErrTransactionNotFound
	case resp.StatusCode == http.StatusBadRequest:
		// tonapi answers 400 for hashes it cannot parse
		return nil, ledger.ErrTransactionNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("tonapi http %d", resp.StatusCode)
	}

	var out tonapiTrace
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return toLedgerTransaction(&out)
}

// toLedgerTransaction derives per-account value movement from a trace. The root
// account pays its fees. Every sender is debited the value of its outgoing messages.
// A receiver is credited only by its own transaction in the trace, and only when that
// transaction succeeded on a message that is not a bounce. A transfer that bounced,
// or whose receiving transaction has not executed yet, credits nobody.
func toLedgerTransaction(trace *tonapiTrace) (*ledger.Transaction, error) {
	root := &trace.Transaction
	account, err := ledger.NormalizeAddress(root.Account.Address)
	if err != nil {
		return nil, fmt.Errorf("tonapi account: %w", err)
	}

	tx := &ledger.Transaction{
		Signature:      root.Hash,
		Failed:         !root.Success || root.Aborted,
		BalanceChanges: map[string]int64{account: -root.TotalFees},
	}
	if root.InMsg != nil && root.InMsg.MsgType == "ext_in_msg" {
		tx.Signers = []string{account}
	}

	if err := applyTrace(tx.BalanceChanges, trace); err != nil {
		return nil, err
	}
	return tx, nil
}

func applyTrace(changes map[string]int64, node *tonapiTrace) error {
	in := &node.Transaction
	account, err := ledger.NormalizeAddress(in.Account.Address)
	if err != nil {
		return fmt.Errorf("tonapi account: %w", err)
	}

	if in.Success && !in.Aborted {
		if msg := in.InMsg; msg != nil && msg.MsgType == "int_msg" && !msg.Bounced {
			changes[account] += msg.Value
		}
		for _, msg := range in.OutMsgs {
			if msg.MsgType != "int_msg" || msg.Destination == nil {
				continue
			}
			changes[account] -= msg.Value
		}
	}

	for i := range node.Children {
		if err := applyTrace(changes, &node.Children[i]); err != nil {
			return err
		}
	}
	return nil
}
