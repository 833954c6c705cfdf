package main

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/rigado/smp"
	"github.com/rigado/smp/bond"
	"github.com/rigado/smp/loopback"
	"github.com/rigado/smp/pairing"
)

var (
	flgBonds    = cli.StringFlag{Name: "bonds, b", Value: "bonds.json", Usage: "bond file"}
	flgSC       = cli.BoolTFlag{Name: "sc", Usage: "offer Secure Connections"}
	flgSCOnly   = cli.BoolFlag{Name: "sc-only", Usage: "refuse legacy pairing"}
	flgMITM     = cli.BoolFlag{Name: "mitm", Usage: "require MITM protection"}
	flgNoBond   = cli.BoolFlag{Name: "no-bond", Usage: "pair without bonding"}
	flgKeypress = cli.BoolFlag{Name: "keypress", Usage: "send keypress notifications during passkey entry"}
	flgTimeout  = cli.DurationFlag{Name: "tmo, t", Value: smp.DefaultResponseTimeout, Usage: "SMP response timeout"}
)

func main() {
	app := cli.NewApp()

	app.Name = "smpctl"
	app.Usage = "LE Security Manager pairing tool"
	app.Version = "0.1.0"
	app.Action = cli.ShowAppHelp
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "debug, d", Usage: "log everything"},
	}

	app.Commands = []cli.Command{
		{
			Name:   "pair",
			Usage:  "Pair two local devices over an in-memory link",
			Action: pair,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "central-io", Value: smp.NoInputNoOutput.String(), Usage: "central IO capability"},
				cli.StringFlag{Name: "peripheral-io", Value: smp.NoInputNoOutput.String(), Usage: "peripheral IO capability"},
				cli.BoolFlag{Name: "oob", Usage: "exchange Secure Connections OOB data first"},
				cli.BoolFlag{Name: "reencrypt", Usage: "reconnect and encrypt with the bond afterwards"},
				cli.StringFlag{Name: "bonds, b", Usage: "directory for the bond files of both devices"},
				flgSC, flgSCOnly, flgMITM, flgNoBond, flgKeypress, flgTimeout,
			},
		},
		{
			Name:      "decode",
			Usage:     "Decode SMP PDUs given in hex",
			ArgsUsage: "<pdu> [pdu...]",
			Action:    decode,
		},
		{
			Name:  "bonds",
			Usage: "Show or delete stored bonds",
			Subcommands: []cli.Command{
				{
					Name:   "list",
					Usage:  "List bonded peers",
					Action: listBonds,
					Flags:  []cli.Flag{flgBonds},
				},
				{
					Name:      "delete",
					Usage:     "Forget a peer",
					ArgsUsage: "<addr>",
					Action:    deleteBond,
					Flags:     []cli.Flag{flgBonds},
				},
			},
		},
		{
			Name:   "serve",
			Usage:  "Answer pairing on a controller's connections",
			Action: serve,
			Flags: []cli.Flag{
				cli.IntFlag{Name: "device", Value: -1, Usage: "HCI user channel device id, -1 for the first one"},
				cli.StringFlag{Name: "port", Usage: "serial port of an H4 controller"},
				cli.StringFlag{Name: "tcp", Usage: "host:port of a network H4 controller"},
				cli.StringFlag{Name: "addr, a", Usage: "local address, aa:bb:cc:dd:ee:ff"},
				cli.BoolFlag{Name: "random", Usage: "local address is random"},
				cli.StringFlag{Name: "io", Value: smp.NoInputNoOutput.String(), Usage: "IO capability"},
				cli.BoolFlag{Name: "single", Usage: "pair with one peer at a time"},
				flgBonds, flgSC, flgSCOnly, flgMITM, flgNoBond, flgKeypress, flgTimeout,
			},
		},
	}

	app.Before = func(c *cli.Context) error {
		if c.Bool("debug") {
			smp.SetLogLevelMax()
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "smpctl: %v\n", err)
		os.Exit(1)
	}
}

// options turns the flags shared by pair and serve into config options.
func options(c *cli.Context, io string) ([]smp.Option, error) {
	capability, err := smp.ParseIoCapability(io)
	if err != nil {
		return nil, err
	}
	opts := []smp.Option{
		smp.OptIoCapability(capability),
		smp.OptSecureConnections(c.BoolT("sc")),
		smp.OptMITM(c.Bool("mitm")),
		smp.OptBonding(!c.Bool("no-bond")),
		smp.OptKeypress(c.Bool("keypress")),
		smp.OptResponseTimeout(c.Duration("tmo")),
	}
	if c.Bool("sc-only") {
		opts = append(opts, smp.OptSecureConnectionsOnly())
	}
	return opts, nil
}

func printJSON(v interface{}) error {
	b, err := jsoniter.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

type device struct {
	addr  smp.Addr
	app   *loopback.AutoApp
	bonds smp.BondManager
	mgr   *pairing.Manager
}

func newDevice(c *cli.Context, addr smp.Addr, io, bondDir, name string, b *loopback.Board, extra ...smp.Option) (*device, error) {
	opts, err := options(c, io)
	if err != nil {
		return nil, err
	}
	cfg, err := smp.NewConfig(append(opts, extra...)...)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}

	d := &device{addr: addr, app: loopback.NewAutoApp(b)}
	if bondDir != "" {
		d.bonds = bond.NewManager(filepath.Join(bondDir, name+".json"))
	}
	if d.mgr, err = pairing.NewManager(cfg, d.app, d.bonds, nil); err != nil {
		return nil, errors.Wrap(err, name)
	}
	return d, nil
}

func pair(c *cli.Context) error {
	bondDir := c.String("bonds")
	if c.Bool("reencrypt") && bondDir == "" {
		dir, err := ioutil.TempDir("", "smpctl")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		bondDir = dir
	}

	var oob []smp.Option
	if c.Bool("oob") {
		oob = append(oob, smp.OptOobFlag(true))
	}

	b := loopback.NewBoard()
	central, err := newDevice(c, smp.Addr{Octets: [6]byte{0x01, 0x00, 0x00, 0x00, 0xc0, 0xc0}, Type: smp.AddrRandom},
		c.String("central-io"), bondDir, "central", b, oob...)
	if err != nil {
		return err
	}
	peripheral, err := newDevice(c, smp.Addr{Octets: [6]byte{0x02, 0x00, 0x00, 0x00, 0xc0, 0xc0}, Type: smp.AddrRandom},
		c.String("peripheral-io"), bondDir, "peripheral", b)
	if err != nil {
		return err
	}

	res, err := runLoopback(central, peripheral, c.Bool("oob"), false)
	if err != nil {
		return err
	}
	if err := printJSON(res); err != nil {
		return err
	}

	if c.Bool("reencrypt") {
		res, err = runLoopback(central, peripheral, false, true)
		if err != nil {
			return err
		}
		return printJSON(res)
	}
	return nil
}

type loopbackResult struct {
	Central    smp.Result `json:"central"`
	Peripheral smp.Result `json:"peripheral"`
	Compared   []uint32   `json:"compared,omitempty"`
	Passkeys   []uint32   `json:"passkeys,omitempty"`
}

// runLoopback connects the devices and pairs them, or asks for security
// from the peripheral when secure is set.
func runLoopback(central, peripheral *device, oob, secure bool) (*loopbackResult, error) {
	l, err := loopback.New(central.mgr, peripheral.mgr, central.addr, peripheral.addr)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	central.app.Attach(l.Central())
	peripheral.app.Attach(l.Peripheral())

	if oob {
		if err := l.Peripheral().CreateLocalOobData(); err != nil {
			return nil, errors.Wrap(err, "oob data")
		}
	}

	if secure {
		err = l.Peripheral().Secure()
	} else {
		err = l.Central().Pair()
	}
	if err != nil {
		return nil, err
	}

	wait := 2 * smp.DefaultResponseTimeout
	res := &loopbackResult{}
	var ok bool
	if res.Central, ok = central.app.Wait(wait); !ok {
		return nil, errors.New("central did not complete")
	}
	if res.Peripheral, ok = peripheral.app.Wait(wait); !ok {
		return nil, errors.New("peripheral did not complete")
	}
	res.Compared = central.app.Compared()
	res.Passkeys = append(central.app.Displayed(), peripheral.app.Displayed()...)
	return res, nil
}

func decode(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowCommandHelp(c, "decode")
	}
	for _, arg := range c.Args() {
		b, err := hex.DecodeString(strings.Replace(arg, " ", "", -1))
		if err != nil {
			return errors.Wrapf(err, "pdu %q", arg)
		}
		cmd, err := pairing.ParseCommand(b)
		if err != nil {
			fmt.Printf("% X: %v\n", b, err)
			continue
		}
		if err := printJSON(cmd); err != nil {
			return err
		}
	}
	return nil
}

func listBonds(c *cli.Context) error {
	bonds, err := bond.NewManager(c.String("bonds")).List()
	if err != nil {
		return err
	}
	for _, ks := range bonds {
		fmt.Printf("%v  sc=%v authenticated=%v key size %d, created %v\n",
			ks.Peer, ks.SecureConnections, ks.Authenticated, ks.KeySize, ks.Created.Format(time.RFC3339))
	}
	return nil
}

func deleteBond(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowCommandHelp(c, "delete")
	}
	a, err := smp.NewAddr(c.Args().First(), smp.AddrPublic)
	if err != nil {
		return err
	}
	return bond.NewManager(c.String("bonds")).Delete(a)
}
