// Package snapshot persists chess.GameState values.
//
// A snapshot is a single DAG-CBOR block wrapped in a CARv1 container whose
// only root is the block's CID. Loading verifies the CID against the block
// bytes, so truncated or edited files are rejected before any field is read.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-car"
	"github.com/ipld/go-car/util"
	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/justinabrahms/deskchess/internal/chess"
	"github.com/multiformats/go-multihash"
)

const (
	formatName    = "deskchess/snapshot"
	formatVersion = 1
)

// ErrDeserialization is returned for any input that is not a snapshot this
// package wrote.
var ErrDeserialization = errors.New("snapshot: cannot decode game state")

var blockPrefix = cid.Prefix{
	Version:  1,
	Codec:    cid.DagCBOR,
	MhType:   multihash.SHA2_256,
	MhLength: -1,
}

// Encode serializes s.
func Encode(s chess.GameState) ([]byte, error) {
	node, err := buildNode(s)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot node: %w", err)
	}

	var block bytes.Buffer
	if err := dagcbor.Encode(node, &block); err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}

	root, err := blockPrefix.Sum(block.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to hash block: %w", err)
	}

	var out bytes.Buffer
	if err := car.WriteHeader(&car.CarHeader{Roots: []cid.Cid{root}, Version: 1}, &out); err != nil {
		return nil, fmt.Errorf("failed to write CAR header: %w", err)
	}
	if err := util.LdWrite(&out, root.Bytes(), block.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write CAR block: %w", err)
	}
	return out.Bytes(), nil
}

// Decode parses data produced by Encode. Every failure wraps
// ErrDeserialization.
func Decode(data []byte) (chess.GameState, error) {
	s, err := decode(data)
	if err != nil {
		return chess.GameState{}, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return s, nil
}

func decode(data []byte) (chess.GameState, error) {
	reader, err := car.NewCarReader(bytes.NewReader(data))
	if err != nil {
		return chess.GameState{}, fmt.Errorf("failed to create CAR reader: %w", err)
	}
	if len(reader.Header.Roots) != 1 {
		return chess.GameState{}, fmt.Errorf("expected one root, got %d", len(reader.Header.Roots))
	}
	root := reader.Header.Roots[0]

	block, err := reader.Next()
	if err == io.EOF {
		return chess.GameState{}, errors.New("missing state block")
	}
	if err != nil {
		return chess.GameState{}, fmt.Errorf("failed to read block: %w", err)
	}
	if !block.Cid().Equals(root) {
		return chess.GameState{}, fmt.Errorf("block %s is not the root %s", block.Cid(), root)
	}
	sum, err := root.Prefix().Sum(block.RawData())
	if err != nil {
		return chess.GameState{}, fmt.Errorf("failed to hash block: %w", err)
	}
	if !sum.Equals(root) {
		return chess.GameState{}, errors.New("block content does not match its CID")
	}
	if _, err := reader.Next(); err != io.EOF {
		if err == nil {
			return chess.GameState{}, errors.New("unexpected block after the state block")
		}
		return chess.GameState{}, fmt.Errorf("trailing data after the state block: %w", err)
	}

	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dagcbor.Decode(nb, bytes.NewReader(block.RawData())); err != nil {
		return chess.GameState{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return readNode(nb.Build())
}

func buildNode(s chess.GameState) (ipld.Node, error) {
	return qp.BuildMap(basicnode.Prototype.Any, 6, func(ma ipld.MapAssembler) {
		qp.MapEntry(ma, "format", qp.String(formatName))
		qp.MapEntry(ma, "version", qp.Int(formatVersion))
		qp.MapEntry(ma, "turn", qp.String(s.Turn.String()))
		qp.MapEntry(ma, "clock", qp.Map(2, func(ma ipld.MapAssembler) {
			qp.MapEntry(ma, "white", qp.Int(int64(s.WhiteSeconds)))
			qp.MapEntry(ma, "black", qp.Int(int64(s.BlackSeconds)))
		}))
		qp.MapEntry(ma, "board", qp.List(-1, func(la ipld.ListAssembler) {
			for row := range s.Board {
				for col, p := range s.Board[row] {
					if p.IsZero() {
						continue
					}
					sq := chess.Sq(row, col)
					qp.ListEntry(la, qp.Map(2, func(ma ipld.MapAssembler) {
						qp.MapEntry(ma, "square", qp.String(sq.String()))
						qp.MapEntry(ma, "piece", pieceNode(p))
					}))
				}
			}
		}))
		qp.MapEntry(ma, "history", qp.List(int64(len(s.History)), func(la ipld.ListAssembler) {
			for _, m := range s.History {
				qp.ListEntry(la, qp.Map(4, func(ma ipld.MapAssembler) {
					qp.MapEntry(ma, "from", qp.String(m.From.String()))
					qp.MapEntry(ma, "to", qp.String(m.To.String()))
					qp.MapEntry(ma, "moved", pieceNode(m.Moved))
					if m.IsCapture() {
						qp.MapEntry(ma, "captured", pieceNode(m.Captured))
					} else {
						qp.MapEntry(ma, "captured", qp.Null())
					}
				}))
			}
		}))
	})
}

func pieceNode(p chess.Piece) qp.Assemble {
	return qp.Map(2, func(ma ipld.MapAssembler) {
		qp.MapEntry(ma, "kind", qp.String(p.Kind.String()))
		qp.MapEntry(ma, "color", qp.String(p.Color.String()))
	})
}

func readNode(n ipld.Node) (chess.GameState, error) {
	var s chess.GameState

	if n.Kind() != ipld.Kind_Map {
		return s, fmt.Errorf("expected map, got %s", n.Kind())
	}
	format, err := stringField(n, "format")
	if err != nil {
		return s, err
	}
	if format != formatName {
		return s, fmt.Errorf("unknown format %q", format)
	}
	version, err := intField(n, "version")
	if err != nil {
		return s, err
	}
	if version != formatVersion {
		return s, fmt.Errorf("unsupported version %d", version)
	}

	turn, err := stringField(n, "turn")
	if err != nil {
		return s, err
	}
	if s.Turn, err = chess.ParseColor(turn); err != nil {
		return s, err
	}

	clock, err := n.LookupByString("clock")
	if err != nil {
		return s, fmt.Errorf("clock: %w", err)
	}
	if s.WhiteSeconds, err = secondsField(clock, "white"); err != nil {
		return s, err
	}
	if s.BlackSeconds, err = secondsField(clock, "black"); err != nil {
		return s, err
	}

	kings := map[chess.Color]int{}
	if err := eachListEntry(n, "board", func(entry ipld.Node) error {
		sq, err := squareField(entry, "square")
		if err != nil {
			return err
		}
		if !s.Board[sq.Row][sq.Col].IsZero() {
			return fmt.Errorf("square %s listed twice", sq)
		}
		p, err := pieceField(entry, "piece")
		if err != nil {
			return err
		}
		if p.Kind == chess.King {
			if kings[p.Color]++; kings[p.Color] > 1 {
				return fmt.Errorf("more than one %s king", p.Color)
			}
		}
		s.Board[sq.Row][sq.Col] = p
		return nil
	}); err != nil {
		return s, err
	}

	if err := eachListEntry(n, "history", func(entry ipld.Node) error {
		m, err := readMove(entry)
		if err != nil {
			return err
		}
		s.History = append(s.History, m)
		return nil
	}); err != nil {
		return s, err
	}

	return s, nil
}

func readMove(n ipld.Node) (chess.Move, error) {
	var m chess.Move
	var err error

	if m.From, err = squareField(n, "from"); err != nil {
		return m, err
	}
	if m.To, err = squareField(n, "to"); err != nil {
		return m, err
	}
	if m.Moved, err = pieceField(n, "moved"); err != nil {
		return m, err
	}

	captured, err := n.LookupByString("captured")
	if err != nil {
		return m, fmt.Errorf("captured: %w", err)
	}
	if !captured.IsNull() {
		if m.Captured, err = readPiece(captured); err != nil {
			return m, fmt.Errorf("captured: %w", err)
		}
	}
	return m, nil
}

func eachListEntry(n ipld.Node, key string, fn func(ipld.Node) error) error {
	list, err := n.LookupByString(key)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if list.Kind() != ipld.Kind_List {
		return fmt.Errorf("%s: expected list, got %s", key, list.Kind())
	}
	iter := list.ListIterator()
	for !iter.Done() {
		i, entry, err := iter.Next()
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := fn(entry); err != nil {
			return fmt.Errorf("%s[%d]: %w", key, i, err)
		}
	}
	return nil
}

func stringField(n ipld.Node, key string) (string, error) {
	v, err := n.LookupByString(key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	s, err := v.AsString()
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}

func intField(n ipld.Node, key string) (int64, error) {
	v, err := n.LookupByString(key)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	i, err := v.AsInt()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func secondsField(n ipld.Node, key string) (int, error) {
	v, err := intField(n, key)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 1<<31-1 {
		return 0, fmt.Errorf("%s: %d seconds out of range", key, v)
	}
	return int(v), nil
}

func squareField(n ipld.Node, key string) (chess.Square, error) {
	s, err := stringField(n, key)
	if err != nil {
		return chess.Square{}, err
	}
	return chess.ParseSquare(s)
}

func pieceField(n ipld.Node, key string) (chess.Piece, error) {
	v, err := n.LookupByString(key)
	if err != nil {
		return chess.NoPiece, fmt.Errorf("%s: %w", key, err)
	}
	p, err := readPiece(v)
	if err != nil {
		return chess.NoPiece, fmt.Errorf("%s: %w", key, err)
	}
	return p, nil
}

func readPiece(n ipld.Node) (chess.Piece, error) {
	kind, err := stringField(n, "kind")
	if err != nil {
		return chess.NoPiece, err
	}
	color, err := stringField(n, "color")
	if err != nil {
		return chess.NoPiece, err
	}
	k, err := chess.ParseKind(kind)
	if err != nil {
		return chess.NoPiece, err
	}
	c, err := chess.ParseColor(color)
	if err != nil {
		return chess.NoPiece, err
	}
	return chess.NewPiece(k, c), nil
}
