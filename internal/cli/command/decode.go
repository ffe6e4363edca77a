package command

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/goudanet-go/internal/cli/output"
	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/netcode/discovery"
	"github.com/yndnr/goudanet-go/internal/netcode/transport"
)

// DecodeCommand returns the decode subcommand group.
func DecodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "decode",
		Usage: "Decode wire messages",
		Subcommands: []*cli.Command{
			{
				Name:      "handshake",
				Usage:     "Decode discovery announcements",
				ArgsUsage: "MESSAGE...",
				Action:    decodeHandshake,
			},
			{
				Name:      "packet",
				Usage:     "Decode a hex-encoded transport packet",
				ArgsUsage: "HEX",
				Action:    decodePacket,
			},
		},
	}
}

type handshakeRow struct {
	Message       string `yaml:"message" json:"message"`
	Port          uint16 `yaml:"port" json:"port"`
	ParticipantID uint64 `yaml:"participant_id" json:"participant_id"`
}

func decodeHandshake(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("decode handshake: MESSAGE is required", 1)
	}
	var rows []handshakeRow
	for _, msg := range c.Args().Slice() {
		h, ok := discovery.Decode(msg)
		if !ok {
			return cli.Exit(fmt.Sprintf("decode handshake: %q is not a discovery message", msg), 1)
		}
		rows = append(rows, handshakeRow{Message: msg, Port: h.Port, ParticipantID: h.ParticipantID})
	}
	return render(c, rows)
}

// packetView is the decoded form of either packet kind.
type packetView struct {
	Kind     string        `yaml:"kind" json:"kind"`
	Handle   domain.Handle `yaml:"handle" json:"handle"`
	Start    *domain.Frame `yaml:"start,omitempty" json:"start,omitempty"`
	Ack      *domain.Frame `yaml:"ack,omitempty" json:"ack,omitempty"`
	Inputs   []inputView   `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Frame    *domain.Frame `yaml:"frame,omitempty" json:"frame,omitempty"`
	Checksum string        `yaml:"checksum,omitempty" json:"checksum,omitempty"`
}

type inputView struct {
	Frame   domain.Frame `yaml:"frame" json:"frame"`
	Head    domain.Vec3  `yaml:"head" json:"head"`
	Spell   uint8        `yaml:"spell" json:"spell"`
	Casting bool         `yaml:"casting" json:"casting"`
}

func decodePacket(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("decode packet: exactly one HEX argument is required", 1)
	}
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(c.Args().First()), "0x"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("decode packet: %v", err), 1)
	}
	view, err := viewPacket(b)
	if err != nil {
		return cli.Exit(fmt.Sprintf("decode packet: %v", err), 1)
	}
	if ParseGlobalFlags(c).Output == output.FormatTable {
		return render(c, packetTable(view))
	}
	return render(c, view)
}

func viewPacket(b []byte) (packetView, error) {
	kind, err := transport.Kind(b)
	if err != nil {
		return packetView{}, err
	}
	switch kind {
	case transport.KindInput:
		p, err := transport.DecodeInput(b)
		if err != nil {
			return packetView{}, err
		}
		v := packetView{Kind: "input", Handle: p.Handle, Start: &p.Start, Ack: &p.Ack}
		for i, in := range p.Inputs {
			v.Inputs = append(v.Inputs, inputView{
				Frame:   p.Start + domain.Frame(i),
				Head:    in.Head.Position,
				Spell:   in.Spell,
				Casting: in.Casting(),
			})
		}
		return v, nil
	case transport.KindChecksum:
		p, err := transport.DecodeChecksum(b)
		if err != nil {
			return packetView{}, err
		}
		return packetView{
			Kind:     "checksum",
			Handle:   p.Handle,
			Frame:    &p.Frame,
			Checksum: fmt.Sprintf("%016x", p.Checksum),
		}, nil
	default:
		return packetView{}, fmt.Errorf("unknown packet kind %d", kind)
	}
}

// packetTable lays out one row per input, or a single row for a checksum.
func packetTable(v packetView) any {
	if v.Kind == "checksum" {
		return []struct {
			Kind     string        `yaml:"kind"`
			Handle   domain.Handle `yaml:"handle"`
			Frame    domain.Frame  `yaml:"frame"`
			Checksum string        `yaml:"checksum"`
		}{{v.Kind, v.Handle, *v.Frame, v.Checksum}}
	}
	type row struct {
		Handle  domain.Handle `yaml:"handle"`
		Frame   domain.Frame  `yaml:"frame"`
		Ack     domain.Frame  `yaml:"ack"`
		Head    string        `yaml:"head"`
		Spell   uint8         `yaml:"spell"`
		Casting bool          `yaml:"casting"`
	}
	rows := make([]row, 0, len(v.Inputs))
	for _, in := range v.Inputs {
		rows = append(rows, row{
			Handle:  v.Handle,
			Frame:   in.Frame,
			Ack:     *v.Ack,
			Head:    fmt.Sprintf("%d,%d,%d", in.Head.X, in.Head.Y, in.Head.Z),
			Spell:   in.Spell,
			Casting: in.Casting,
		})
	}
	return rows
}
