package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/rigado/smp"
	"github.com/rigado/smp/bond"
	"github.com/rigado/smp/hci"
	"github.com/rigado/smp/hci/h4"
	"github.com/rigado/smp/hci/socket"
	"github.com/rigado/smp/loopback"
	"github.com/rigado/smp/pairing"
)

// consoleApp accepts everything like an AutoApp, but shows passkeys and
// comparison values and reads entered passkeys from stdin.
type consoleApp struct {
	*loopback.AutoApp
	in *bufio.Reader
}

func (a *consoleApp) PasskeyDisplay(peer smp.Addr, passkey uint32) {
	fmt.Printf("[ %v ] passkey %06d\n", peer, passkey)
	a.AutoApp.PasskeyDisplay(peer, passkey)
}

func (a *consoleApp) NumericComparison(peer smp.Addr, value uint32) {
	fmt.Printf("[ %v ] confirm value %06d\n", peer, value)
	a.AutoApp.NumericComparison(peer, value)
}

func (a *consoleApp) PasskeyRequest(peer smp.Addr) {
	s, ok := a.Lookup(peer)
	if !ok {
		return
	}
	fmt.Printf("[ %v ] enter passkey: ", peer)
	go func() {
		line, err := a.in.ReadString('\n')
		pk, perr := strconv.ParseUint(strings.TrimSpace(line), 10, 32)
		if err != nil || perr != nil || pk > smp.MaxPasskey {
			s.PasskeyReply(false, 0)
			return
		}
		s.PasskeyReply(true, uint32(pk))
	}()
}

func (a *consoleApp) PairingComplete(peer smp.Addr, res smp.Result) {
	if res.Reason == smp.Success {
		fmt.Printf("[ %v ] paired\n", peer)
	} else {
		fmt.Printf("[ %v ] pairing failed: %v\n", peer, res.Reason)
	}
	a.AutoApp.PairingComplete(peer, res)
}

// transport opens the controller named by the flags: a network H4
// stream, a serial H4 port, or the HCI user channel.
func transport(c *cli.Context) (io.ReadWriteCloser, error) {
	switch {
	case c.String("tcp") != "":
		return h4.Dial(c.String("tcp"), time.Second)
	case c.String("port") != "":
		return h4.New(h4.DefaultOptions(c.String("port")))
	}
	return socket.NewSocket(c.Int("device"))
}

func serve(c *cli.Context) error {
	if c.String("addr") == "" {
		return errors.New("serve needs the local address, --addr")
	}
	typ := smp.AddrPublic
	if c.Bool("random") {
		typ = smp.AddrRandom
	}
	local, err := smp.NewAddr(c.String("addr"), typ)
	if err != nil {
		return err
	}

	opts, err := options(c, c.String("io"))
	if err != nil {
		return err
	}
	if c.Bool("single") {
		opts = append(opts, smp.OptSinglePairing())
	}
	cfg, err := smp.NewConfig(opts...)
	if err != nil {
		return err
	}

	app := &consoleApp{AutoApp: loopback.NewAutoApp(nil), in: bufio.NewReader(os.Stdin)}
	mgr, err := pairing.NewManager(cfg, app, bond.NewManager(c.String("bonds")), nil)
	if err != nil {
		return err
	}
	app.Lookup = mgr.Find

	// results are printed as they come, nobody waits on them
	go func() {
		for range app.Results {
		}
	}()

	rw, err := transport(c)
	if err != nil {
		return errors.Wrap(err, "can't open controller")
	}
	host := hci.NewHost(rw, mgr, local)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		host.Close()
	}()

	fmt.Printf("Serving pairing for %v...\n", local)
	if err := host.Run(); err != io.EOF {
		return err
	}
	return nil
}
