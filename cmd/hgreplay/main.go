// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command hgreplay drives a Hashgraph core from a recorded event trace: an
// address book file and a JSON-lines trace file, both read from disk. It
// prints one JSON object per finalised round to stdout, followed by a
// final state snapshot, and exits non-zero if the core ever halts.
package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/luxfi/hashgraph"
	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/config"
	"github.com/luxfi/hashgraph/consensus"
	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var addressBookPath, tracePath, preset string

	cmd := &cobra.Command{
		Use:   "hgreplay",
		Short: "Replay a recorded event trace through a hashgraph core",
		Long: `hgreplay feeds a JSON-lines trace of events into a fresh Hashgraph
core, in file order, and reports every round the core finalises along the
way. It is a debugging and conformance tool, not a network client: the
trace's parent references are by local label, not hash, since the real
hashes are only known once each event is built.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, addressBookPath, tracePath, preset)
		},
	}

	cmd.Flags().StringVar(&addressBookPath, "addressbook", "", "path to the address book JSON file (required)")
	cmd.Flags().StringVar(&tracePath, "trace", "", "path to the JSON-lines event trace (required)")
	cmd.Flags().StringVar(&preset, "preset", "local", "protocol parameter preset: local, testnet, or mainnet")
	cmd.MarkFlagRequired("addressbook")
	cmd.MarkFlagRequired("trace")

	return cmd
}

// addressBookEntry is the on-disk shape of one address book member.
type addressBookEntry struct {
	NodeID string `json:"node_id"`
	Stake  uint64 `json:"stake"`
}

// traceLine is the on-disk shape of one recorded event. SelfParent and
// OtherParent name a prior line's ID, or are empty for no parent.
type traceLine struct {
	ID          string   `json:"id"`
	Creator     int32    `json:"creator"`
	SelfParent  string   `json:"self_parent"`
	OtherParent string   `json:"other_parent"`
	TimeUnix    int64    `json:"time_unix"`
	Txs         []string `json:"txs"`
}

func runReplay(cmd *cobra.Command, addressBookPath, tracePath, preset string) error {
	ab, err := loadAddressBook(addressBookPath)
	if err != nil {
		return fmt.Errorf("loading address book: %w", err)
	}

	params, err := parsePreset(preset)
	if err != nil {
		return err
	}

	hg, err := hashgraph.Initialise(ab, params, nil, log.NewNoOpLogger())
	if err != nil {
		return fmt.Errorf("initialising core: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	hg.OnConsensusRound(func(cr *consensus.ConsensusRound) {
		enc.Encode(consensusRoundView(cr))
	})

	if err := replayTrace(hg, tracePath); err != nil {
		return err
	}

	select {
	case fatal := <-hg.FatalErrors():
		return fmt.Errorf("core halted: %s: %s", fatal.Reason, fatal.Detail)
	default:
	}

	return enc.Encode(hg.CurrentState())
}

func loadAddressBook(path string) (*addressbook.AddressBook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw []addressBookEntry
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, err
	}

	entries := make([]addressbook.Entry, len(raw))
	for i, r := range raw {
		nodeID, err := ids.NodeIDFromString(r.NodeID)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries[i] = addressbook.Entry{ID: nodeID, Stake: r.Stake}
	}
	return addressbook.New(entries)
}

func parsePreset(preset string) (config.Parameters, error) {
	switch preset {
	case "local":
		return config.Local(), nil
	case "testnet":
		return config.Testnet(), nil
	case "mainnet":
		return config.Mainnet(), nil
	default:
		return config.Parameters{}, fmt.Errorf("unknown preset %q", preset)
	}
}

// replayTrace reads tracePath line by line, resolving self_parent and
// other_parent labels against events built from earlier lines, and feeds
// each resulting event to hg in file order.
func replayTrace(hg *hashgraph.Hashgraph, tracePath string) error {
	f, err := os.Open(tracePath)
	if err != nil {
		return err
	}
	defer f.Close()

	byLabel := make(map[string]*event.Event)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var tl traceLine
		if err := json.Unmarshal(line, &tl); err != nil {
			return fmt.Errorf("trace line %d: %w", lineNo, err)
		}

		e, err := buildEvent(tl, byLabel)
		if err != nil {
			return fmt.Errorf("trace line %d (%s): %w", lineNo, tl.ID, err)
		}

		if err := hg.AddEvent(e); err != nil {
			return fmt.Errorf("trace line %d (%s): %w", lineNo, tl.ID, err)
		}
		if tl.ID != "" {
			byLabel[tl.ID] = e
		}
	}
	return scanner.Err()
}

func buildEvent(tl traceLine, byLabel map[string]*event.Event) (*event.Event, error) {
	var selfParent, otherParent *event.Ref
	if tl.SelfParent != "" {
		p, ok := byLabel[tl.SelfParent]
		if !ok {
			return nil, fmt.Errorf("unknown self_parent label %q", tl.SelfParent)
		}
		selfParent = &event.Ref{Hash: p.Hash, Generation: p.Generation}
	}
	if tl.OtherParent != "" {
		p, ok := byLabel[tl.OtherParent]
		if !ok {
			return nil, fmt.Errorf("unknown other_parent label %q", tl.OtherParent)
		}
		otherParent = &event.Ref{Hash: p.Hash, Generation: p.Generation}
	}

	txs := make([][]byte, len(tl.Txs))
	for i, t := range tl.Txs {
		b, err := base64.StdEncoding.DecodeString(t)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		txs[i] = b
	}

	return event.New(addressbook.NodeID(tl.Creator), selfParent, otherParent, time.Unix(tl.TimeUnix, 0).UTC(), txs), nil
}

// consensusRoundEventView is the printed shape of one finalised event.
type consensusRoundEventView struct {
	Hash               string    `json:"hash"`
	Creator            int32     `json:"creator"`
	ConsensusOrder     int64     `json:"consensus_order"`
	ConsensusTimestamp time.Time `json:"consensus_timestamp"`
}

// consensusRoundViewData is the printed shape of one finalised round.
type consensusRoundViewData struct {
	Round              int64                     `json:"round"`
	JudgeCount         int                       `json:"judge_count"`
	MinRoundGeneration int64                     `json:"min_round_generation"`
	Events             []consensusRoundEventView `json:"events"`
}

func consensusRoundView(cr *consensus.ConsensusRound) consensusRoundViewData {
	events := make([]consensusRoundEventView, len(cr.Events))
	for i, e := range cr.Events {
		events[i] = consensusRoundEventView{
			Hash:               fmt.Sprintf("%x", e.Hash[:]),
			Creator:            int32(e.CreatorID),
			ConsensusOrder:     e.ConsensusOrder,
			ConsensusTimestamp: e.ConsensusTimestamp,
		}
	}
	return consensusRoundViewData{
		Round:              cr.Round,
		JudgeCount:         len(cr.Judges),
		MinRoundGeneration: cr.MinRoundGeneration,
		Events:             events,
	}
}
