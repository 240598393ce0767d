package tx

import (
	"encoding/json"
	"fmt"
)

// typeProbe extracts just the tx_type discriminator from a raw transaction
// payload so UnmarshalTransactionJSON can pick the concrete type to decode
// into.
type typeProbe struct {
	TxType Type `json:"tx_type"`
}

// UnmarshalTransactionJSON decodes raw JSON into the concrete Transaction
// implementation named by its tx_type field.
func UnmarshalTransactionJSON(data []byte) (Transaction, error) {
	var probe typeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("tx: decode type: %w", err)
	}
	var t Transaction
	switch probe.TxType {
	case TypeCoinbase:
		t = &Coinbase{}
	case TypePost:
		t = &Post{}
	case TypeEndorse:
		t = &Endorse{}
	case TypeTransfer:
		t = &Transfer{}
	default:
		return nil, fmt.Errorf("tx: unknown transaction type %q", probe.TxType)
	}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("tx: decode %s: %w", probe.TxType, err)
	}
	return t, nil
}

// UnmarshalTransactionMap is a convenience for decoding a transaction that
// has already been parsed into a generic map (as RPC params commonly are).
func UnmarshalTransactionMap(m map[string]any) (Transaction, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("tx: re-marshal map: %w", err)
	}
	return UnmarshalTransactionJSON(raw)
}
