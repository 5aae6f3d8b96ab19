// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/msp"
	"github.com/relabs-tech/msp_bridge/internal/sampler"
)

// MSPDebugCmd is a request from the debug page.
type MSPDebugCmd struct {
	Action string `json:"action"`        // "get_map", "read", "read_all"
	Cmd    string `json:"cmd,omitempty"` // decimal or 0x hex
}

// MSPDebugResponse is sent back over the debug websocket.
type MSPDebugResponse struct {
	Type      string             `json:"type"` // "frame", "command_map", "error"
	Cmd       byte               `json:"cmd,omitempty"`
	Name      string             `json:"name,omitempty"`
	Payload   []int16            `json:"payload,omitempty"`
	Bytes     string             `json:"bytes,omitempty"` // hex, includes an odd trailing byte
	Fields    map[string]float64 `json:"fields,omitempty"`
	ElapsedMS float64            `json:"elapsed_ms,omitempty"`
	Timestamp string             `json:"timestamp,omitempty"`
	Message   string             `json:"message,omitempty"`
	Commands  []CommandInfo      `json:"commands,omitempty"`
}

// CommandInfo describes one readable command.
type CommandInfo struct {
	Cmd      byte   `json:"cmd"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type mspDebugSession struct {
	conn *websocket.Conn
	ex   sampler.Exchanger
}

// NewMSPDebugHandler serves a websocket that issues raw read-only MSP
// requests. Setters are refused: the arming sequence owns the sticks.
func NewMSPDebugHandler(ex sampler.Exchanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("msp_debug: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		s := &mspDebugSession{conn: conn, ex: ex}
		if err := s.sendCommandMap(); err != nil {
			log.Printf("msp_debug: error sending command map: %v", err)
			return
		}

		for {
			var req MSPDebugCmd
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("msp_debug: websocket error: %v", err)
				}
				return
			}

			switch req.Action {
			case "get_map":
				s.sendCommandMap()
			case "read":
				s.handleRead(req.Cmd)
			case "read_all":
				for _, c := range drone.Categories() {
					s.read(c.Command())
				}
			default:
				s.sendError(fmt.Sprintf("unknown action: %s", req.Action))
			}
		}
	}
}

func (s *mspDebugSession) handleRead(arg string) {
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid command: %q", arg))
		return
	}
	cmd := byte(v)
	if !msp.IsGetter(cmd) {
		s.sendError(fmt.Sprintf("command %d is not a getter", cmd))
		return
	}
	s.read(cmd)
}

func (s *mspDebugSession) read(cmd byte) {
	resp, err := s.ex.Exchange(cmd, nil)
	if err != nil {
		s.sendError(fmt.Sprintf("read error: %v", err))
		return
	}

	out := MSPDebugResponse{
		Type:      "frame",
		Cmd:       cmd,
		Name:      msp.CommandName(cmd),
		Payload:   resp.Payload,
		Bytes:     hex.EncodeToString(resp.Data),
		ElapsedMS: float64(resp.Elapsed.Microseconds()) / 1000.0,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
	if cat, ok := drone.CategoryForCommand(cmd); ok {
		if smp, err := drone.NewSample(cat, resp.Payload, resp.Elapsed, time.Now()); err == nil {
			out.Fields = smp.Fields()
		}
	}
	s.conn.WriteJSON(out)
}

func (s *mspDebugSession) sendCommandMap() error {
	var cmds []CommandInfo
	for cmd := msp.CmdIdent; msp.IsGetter(cmd); cmd++ {
		name := msp.CommandName(cmd)
		if name == "" {
			continue
		}
		info := CommandInfo{Cmd: cmd, Name: name}
		if cat, ok := drone.CategoryForCommand(cmd); ok {
			info.Category = cat.String()
		}
		cmds = append(cmds, info)
	}
	return s.conn.WriteJSON(MSPDebugResponse{Type: "command_map", Commands: cmds})
}

func (s *mspDebugSession) sendError(message string) {
	s.conn.WriteJSON(MSPDebugResponse{Type: "error", Message: message})
}
