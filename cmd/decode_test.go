package main

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/0xPolygonHermez/zkevm-xcall/connection"
	"github.com/0xPolygonHermez/zkevm-xcall/xcall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePacket(t *testing.T) {
	req := xcall.CSMessageRequest{From: "0x3.icon/hxabc", To: "archway1dapp", Sn: 3, Data: []byte{0xca, 0xfe}}
	inner, err := xcall.EncodeRequest(req)
	require.NoError(t, err)
	raw, err := connection.Message{Sn: connection.SomeSn(0), Fee: big.NewInt(10), Data: inner}.Encode()
	require.NoError(t, err)

	out, err := decode(kindPacket, raw)
	require.NoError(t, err)
	p, ok := out.(decodedPacket)
	require.True(t, ok)
	assert.Equal(t, "0", p.Sn)
	assert.Equal(t, "10", p.Fee)
	r, ok := p.Message.(decodedRequest)
	require.True(t, ok)
	assert.Equal(t, "request", r.Type)
	assert.Equal(t, req.From, r.From)
}

func TestDecodeResponse(t *testing.T) {
	raw, err := xcall.EncodeResponse(xcall.CSMessageResponse{Sn: 9, Code: xcall.ResponseSuccess})
	require.NoError(t, err)
	out, err := decode(kindCSMessage, raw)
	require.NoError(t, err)
	assert.Equal(t, decodedResponse{Type: "response", Sn: 9, Code: "SUCCESS"}, out)
}

func TestDecodeErrors(t *testing.T) {
	_, err := decode("proto", []byte{0xc0})
	require.Error(t, err)
	_, err = decode(kindCSMessage, []byte{0x01, 0x02})
	require.ErrorIs(t, err, xcall.ErrInvalidMessage)
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)
	assert.Contains(t, buf.String(), version)
}
