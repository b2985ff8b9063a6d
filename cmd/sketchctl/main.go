package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/totegamma/sketchroom/client"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: sketchctl [-server url] [-token token] <health|history|presence|snapshot|reset>\n")
	flag.PrintDefaults()
}

func main() {
	server := flag.String("server", "http://localhost:8000", "sketchroom base url")
	token := flag.String("token", os.Getenv("SKETCHROOM_ADMIN_TOKEN"), "admin token for reset")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := client.New(*server, *token)

	var result any
	var err error
	switch flag.Arg(0) {
	case "health":
		result, err = c.Health(ctx)
	case "history":
		result, err = c.History(ctx)
	case "presence":
		result, err = c.Presence(ctx)
	case "snapshot":
		snapshot, ok, serr := c.Snapshot(ctx)
		if serr == nil && !ok {
			fmt.Fprintln(os.Stderr, "no snapshot")
			os.Exit(1)
		}
		result, err = snapshot, serr
	case "reset":
		err = c.Reset(ctx)
		result = map[string]string{"status": "ok"}
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
}
