package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// irdac-ctl sends one event to the irdac daemon over its IPC socket.
//
// Usage:
//   irdac-ctl up
//   irdac-ctl volume 40
//   irdac-ctl volume -30dB
//   irdac-ctl source coax
//   irdac-ctl code 0x4BA5
//   irdac-ctl status

const defaultSocket = "/tmp/irdac.sock"

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type response struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

func main() {
	socketPath := defaultSocket
	args := os.Args[1:]

	if len(args) > 0 && (args[0] == "-socket" || args[0] == "--socket") {
		if len(args) < 2 {
			fail("-socket requires an argument")
		}
		socketPath = args[1]
		args = args[2:]
	}
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	req, err := buildRequest(args)
	if err != nil {
		if err == errHelp {
			printUsage()
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	resp, err := send(socketPath, req)
	if err != nil {
		fail(err.Error())
	}
	if resp.Status != "ok" {
		fail("daemon error: " + resp.Error)
	}
	if len(resp.State) > 0 {
		var pretty map[string]any
		if json.Unmarshal(resp.State, &pretty) == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return
		}
	}
	fmt.Println("ok")
}

var errHelp = fmt.Errorf("help requested")

func buildRequest(args []string) (envelope, error) {
	need := func(what string) (string, error) {
		if len(args) < 2 {
			return "", fmt.Errorf("%s requires %s", args[0], what)
		}
		return strings.Join(args[1:], " "), nil
	}

	switch args[0] {
	case "up", "volume-up":
		return envelope{Type: "remote_command", Data: map[string]string{"command": "volume_up"}}, nil
	case "down", "volume-down":
		return envelope{Type: "remote_command", Data: map[string]string{"command": "volume_down"}}, nil
	case "next-source":
		return envelope{Type: "remote_command", Data: map[string]string{"command": "source_next"}}, nil

	case "volume", "vol":
		v, err := need("a step or dB value")
		if err != nil {
			return envelope{}, err
		}
		lower := strings.ToLower(strings.ReplaceAll(v, " ", ""))
		if num, ok := strings.CutSuffix(lower, "db"); ok {
			db, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return envelope{}, fmt.Errorf("invalid dB value %q", v)
			}
			return envelope{Type: "volume_set", Data: map[string]any{"db": db, "origin": "irdac-ctl"}}, nil
		}
		step, err := strconv.Atoi(v)
		if err != nil {
			return envelope{}, fmt.Errorf("invalid step %q", v)
		}
		return envelope{Type: "volume_set", Data: map[string]any{"step": step, "origin": "irdac-ctl"}}, nil

	case "source":
		v, err := need("a source name")
		if err != nil {
			return envelope{}, err
		}
		return envelope{Type: "source_set", Data: map[string]string{"source": v, "origin": "irdac-ctl"}}, nil

	case "display":
		v, err := need("text")
		if err != nil {
			return envelope{}, err
		}
		return envelope{Type: "display_text", Data: map[string]string{"text": v, "origin": "irdac-ctl"}}, nil

	case "code":
		if _, err := need("an IR code"); err != nil {
			return envelope{}, err
		}
		data := map[string]any{"code": args[1]}
		if len(args) > 2 {
			data["protocol"] = args[2]
		}
		return envelope{Type: "ir_code", Data: data}, nil

	case "status", "state":
		return envelope{Type: "get_state"}, nil

	case "help", "-h", "--help":
		return envelope{}, errHelp
	}
	return envelope{}, fmt.Errorf("unknown command: %s", args[0])
}

func send(socketPath string, req envelope) (response, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return response{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	line, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return response{}, fmt.Errorf("send request: %w", err)
	}

	var resp response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func fail(msg string) {
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `irdac-ctl - control the irdac daemon via IPC

Usage:
  irdac-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: %s)

Commands:
  up, down                 Press volume up / down once
  next-source              Press the source button
  volume <step|NdB>        Set absolute volume (e.g. 40, -30dB)
  source <name>            Select input: optical, coax, i2s or a display label
  display <text>           Show a message on the front panel
  code <hex> [protocol]    Inject a raw IR code (protocol: nec, sony)
  status                   Print the daemon state
  help                     Show this help message

Examples:
  irdac-ctl volume -25.5dB
  irdac-ctl code 0x4BA5 sony
  irdac-ctl -socket /run/irdac.sock status
`, defaultSocket)
}
