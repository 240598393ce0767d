// Package p2p implements peer-to-peer networking: length-prefixed JSON
// framing over raw TCP, handshake/genesis verification, transaction and
// block gossip, and chain sync.
package p2p

import (
	"encoding/json"
	"fmt"

	"github.com/jiji-chain/jiji-go/config"
)

// MessageType identifies the kind of payload a Message carries.
type MessageType int

const (
	MsgHandshake MessageType = iota
	MsgPeersRequest
	MsgPeersResponse
	MsgTxAnnounce
	MsgTxRequest
	MsgTxResponse
	MsgBlockAnnounce
	MsgBlockRequest
	MsgBlockResponse
	MsgSyncRequest
	MsgSyncResponse
)

// Message is the envelope carried over the wire: [4-byte big-endian
// length][JSON body]. The body is {"type": <int>, "payload": <object>}.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PeerAddr identifies a peer by its host and listening port.
type PeerAddr struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type handshakePayload struct {
	Version     int    `json:"version"`
	Height      uint64 `json:"height"`
	GenesisHash string `json:"genesis_hash"`
}

type peersResponsePayload struct {
	Peers []PeerAddr `json:"peers"`
}

type txAnnouncePayload struct {
	TxHash string `json:"tx_hash"`
}

type txRequestPayload struct {
	TxHash string `json:"tx_hash"`
}

type txResponsePayload struct {
	Transaction json.RawMessage `json:"transaction"`
}

type blockAnnouncePayload struct {
	BlockHash string `json:"block_hash"`
	Height    uint64 `json:"height"`
}

type blockRequestPayload struct {
	BlockHash string  `json:"block_hash,omitempty"`
	Height    *uint64 `json:"height,omitempty"`
}

type blockResponsePayload struct {
	Block json.RawMessage `json:"block"`
}

type syncRequestPayload struct {
	StartHeight uint64 `json:"start_height"`
	EndHeight   uint64 `json:"end_height"`
}

type syncResponsePayload struct {
	Blocks []json.RawMessage `json:"blocks"`
}

func newMessage(t MessageType, payload any) (Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("p2p: marshal payload: %w", err)
	}
	return Message{Type: t, Payload: body}, nil
}

func makeHandshake(height uint64, genesisHash string) (Message, error) {
	return newMessage(MsgHandshake, handshakePayload{
		Version: config.ProtocolVersion, Height: height, GenesisHash: genesisHash,
	})
}

func makePeersRequest() (Message, error) {
	return newMessage(MsgPeersRequest, struct{}{})
}

func makePeersResponse(peers []PeerAddr) (Message, error) {
	return newMessage(MsgPeersResponse, peersResponsePayload{Peers: peers})
}

func makeTxAnnounce(txHash string) (Message, error) {
	return newMessage(MsgTxAnnounce, txAnnouncePayload{TxHash: txHash})
}

func makeTxRequest(txHash string) (Message, error) {
	return newMessage(MsgTxRequest, txRequestPayload{TxHash: txHash})
}

func makeTxResponse(tx json.RawMessage) (Message, error) {
	return newMessage(MsgTxResponse, txResponsePayload{Transaction: tx})
}

func makeBlockAnnounce(blockHash string, height uint64) (Message, error) {
	return newMessage(MsgBlockAnnounce, blockAnnouncePayload{BlockHash: blockHash, Height: height})
}

func makeBlockRequestByHash(blockHash string) (Message, error) {
	return newMessage(MsgBlockRequest, blockRequestPayload{BlockHash: blockHash})
}

func makeBlockRequestByHeight(height uint64) (Message, error) {
	return newMessage(MsgBlockRequest, blockRequestPayload{Height: &height})
}

func makeBlockResponse(b json.RawMessage) (Message, error) {
	return newMessage(MsgBlockResponse, blockResponsePayload{Block: b})
}

func makeSyncRequest(start, end uint64) (Message, error) {
	return newMessage(MsgSyncRequest, syncRequestPayload{StartHeight: start, EndHeight: end})
}

func makeSyncResponse(blocks []json.RawMessage) (Message, error) {
	return newMessage(MsgSyncResponse, syncResponsePayload{Blocks: blocks})
}
