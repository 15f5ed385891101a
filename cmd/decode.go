package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/0xPolygonHermez/zkevm-xcall/connection"
	"github.com/0xPolygonHermez/zkevm-xcall/xcall"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const (
	kindCSMessage = "csmessage"
	kindPacket    = "packet"
)

func decodeCmd(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return errors.New("expected one hex argument")
	}
	out, err := decode(cliCtx.String(flagKind), common.FromHex(cliCtx.Args().First()))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type decodedPacket struct {
	Sn   string        `json:"sn"`
	Fee  string        `json:"fee"`
	Data hexutil.Bytes `json:"data"`
	// Message is set when Data is a CSMessage
	Message interface{} `json:"message,omitempty"`
}

type decodedRequest struct {
	Type string `json:"type"`
	xcall.CSMessageRequest
	Data hexutil.Bytes `json:"Data"`
}

type decodedResponse struct {
	Type string `json:"type"`
	Sn   uint64 `json:"sn"`
	Code string `json:"code"`
}

func decode(kind string, raw []byte) (interface{}, error) {
	switch kind {
	case kindCSMessage:
		return decodeCSMessage(raw)
	case kindPacket:
		m, err := connection.DecodeMessage(raw)
		if err != nil {
			return nil, err
		}
		p := decodedPacket{Sn: m.Sn.String(), Fee: m.Fee.String(), Data: m.Data}
		if inner, err := decodeCSMessage(m.Data); err == nil {
			p.Message = inner
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

func decodeCSMessage(raw []byte) (interface{}, error) {
	msg, err := xcall.DecodeCSMessage(raw)
	if err != nil {
		return nil, err
	}
	if msg.Type == xcall.CSMessageTypeRequest {
		req, err := msg.Request()
		if err != nil {
			return nil, err
		}
		return decodedRequest{Type: "request", CSMessageRequest: req, Data: req.Data}, nil
	}
	res, err := msg.Response()
	if err != nil {
		return nil, err
	}
	return decodedResponse{Type: "response", Sn: res.Sn, Code: res.Code.String()}, nil
}
