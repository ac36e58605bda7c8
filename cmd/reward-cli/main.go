package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	rpcEnv          = "REWARD_RPC_URL"
	rpcTokenEnv     = "REWARD_RPC_TOKEN"
	keystorePassEnv = "REWARD_KEYSTORE_PASS"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcEnv)); v != "" {
		return v
	}
	return "http://localhost:8090"
}

// applyGlobalFlags strips --rpc from args wherever it appears.
func applyGlobalFlags(args []string) ([]string, string, error) {
	endpoint := defaultRPCEndpoint()
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, "", fmt.Errorf("missing value for --rpc")
			}
			endpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			endpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, endpoint, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	args, endpoint, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	c := newClient(endpoint)
	c.token = strings.TrimSpace(os.Getenv(rpcTokenEnv))
	cli := &commandEnv{client: c, stdout: stdout, stderr: stderr}

	switch args[0] {
	case "generate-key":
		return cli.generateKey(args[1:])
	case "create-reward-center":
		return cli.createRewardCenter(args[1:])
	case "withdraw-auction-house-treasury":
		return cli.withdrawTreasury(args[1:])
	case "fund-treasury":
		return cli.fundTreasury(args[1:])
	case "show":
		return cli.show(args[1:])
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: reward-cli [--rpc URL] <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  generate-key --out <path> [--import-file <hex key file>]")
	fmt.Fprintln(w, "      Create an encrypted keystore; an existing keystore is kept. The passphrase is read from")
	fmt.Fprintln(w, "      the file named by "+keystorePassEnv+"_FILE, from "+keystorePassEnv+", or prompted.")
	fmt.Fprintln(w, "  create-reward-center --keystore <path> [--auction-house <addr>] [--mint-rewards <addr>] [--config <path>]")
	fmt.Fprintln(w, "      Create a reward center. Without --auction-house a house over the native mint is created;")
	fmt.Fprintln(w, "      without --mint-rewards a new 9-decimal reward mint is initialized.")
	fmt.Fprintln(w, "  withdraw-auction-house-treasury --keystore <path> --auction-house <addr> --amount <ui amount>")
	fmt.Fprintln(w, "  fund-treasury --keystore <path> --reward-center <addr> --amount <ui amount>")
	fmt.Fprintln(w, "  show --address <addr>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "The gateway defaults to "+rpcEnv+" or http://localhost:8090. Set "+rpcTokenEnv+" when the")
	fmt.Fprintln(w, "gateway requires a bearer token.")
}
