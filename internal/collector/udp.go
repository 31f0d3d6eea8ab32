package collector

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ernie/trinity-arena/internal/domain"
)

const (
	q3Header    = "\xff\xff\xff\xff"
	getStatus   = q3Header + "getstatus\n"
	rconPrefix  = q3Header + "rcon "
	printPrefix = q3Header + "print\n"
	timeout     = 2 * time.Second
	rconTimeout = 3 * time.Second
	maxResponse = 65535
)

// Q3Client queries Quake servers via UDP
type Q3Client struct{}

// NewQ3Client creates a new Q3 UDP client
func NewQ3Client() *Q3Client {
	return &Q3Client{}
}

// QueryStatus queries a server and returns its status
func (c *Q3Client) QueryStatus(address string) (*domain.ServerStatus, error) {
	conn, err := net.DialTimeout("udp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write([]byte(getStatus)); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	buf := make([]byte, maxResponse)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return parseStatusResponse(address, buf[:n])
}

// RconCommand sends an RCON command and collects the printed response
func (c *Q3Client) RconCommand(address, password, command string) (string, error) {
	conn, err := net.DialTimeout("udp", address, rconTimeout)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(rconRequest(password, command))); err != nil {
		return "", fmt.Errorf("sending rcon command: %w", err)
	}

	// long output arrives in several packets
	var response strings.Builder
	buf := make([]byte, maxResponse)

	for {
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := conn.Read(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				break
			}
			if response.Len() > 0 {
				break
			}
			return "", fmt.Errorf("reading response: %w", err)
		}

		data := string(buf[:n])
		if strings.HasPrefix(data, printPrefix) {
			response.WriteString(strings.TrimPrefix(data, printPrefix))
		}
	}

	return response.String(), nil
}

// RconSend sends an RCON command without waiting for the server's reply.
// The arena issues many short commands and learns their effect from the log.
func (c *Q3Client) RconSend(address, password, command string) error {
	conn, err := net.DialTimeout("udp", address, rconTimeout)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(rconTimeout))
	if _, err := conn.Write([]byte(rconRequest(password, command))); err != nil {
		return fmt.Errorf("sending rcon command: %w", err)
	}
	return nil
}

// rconRequest formats \xff\xff\xff\xffrcon <password> <command>
func rconRequest(password, command string) string {
	return fmt.Sprintf("%s%s %s", rconPrefix, password, command)
}

// parseStatusResponse parses the raw getstatus response
func parseStatusResponse(address string, data []byte) (*domain.ServerStatus, error) {
	response := string(data)

	// \xff\xff\xff\xffstatusResponse\n<vars>\n<player1>\n<player2>...
	if !strings.HasPrefix(response, q3Header+"statusResponse\n") {
		return nil, fmt.Errorf("invalid response prefix")
	}
	response = strings.TrimPrefix(response, q3Header+"statusResponse\n")

	lines := strings.Split(response, "\n")

	vars := parseVars(lines[0])
	status := &domain.ServerStatus{
		Address:     address,
		Online:      true,
		LastUpdated: time.Now().UTC(),
		ServerVars:  vars,
		Map:         vars["mapname"],
		MatchState:  vars["g_gamestate"],
	}

	if gt, err := strconv.Atoi(vars["g_gametype"]); err == nil {
		status.GameType = domain.GameTypeFromInt(gt)
	}
	if mc, err := strconv.Atoi(vars["sv_maxclients"]); err == nil {
		status.MaxClients = mc
	}
	if name := vars["sv_hostname"]; name != "" {
		status.Name = domain.CleanQ3Name(name)
	}

	if domain.IsTeamGameType(status.GameType) {
		redScore, redOk := parseIntVar(vars, "g_redscore", "score_red")
		blueScore, blueOk := parseIntVar(vars, "g_bluescore", "score_blue")
		if redOk || blueOk {
			status.TeamScores = &domain.TeamScores{
				RedScore:  redScore,
				BlueScore: blueScore,
			}
		}
	}

	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		player, err := parsePlayerLine(line)
		if err != nil {
			continue
		}
		status.Players = append(status.Players, player)
	}

	return status, nil
}

// parseVars parses backslash-separated key/value pairs. Keys are lowercased.
func parseVars(line string) map[string]string {
	vars := make(map[string]string)
	parts := strings.Split(line, "\\")

	start := 0
	if len(parts) > 0 && parts[0] == "" {
		start = 1
	}

	for i := start; i+1 < len(parts); i += 2 {
		vars[strings.ToLower(parts[i])] = parts[i+1]
	}

	return vars
}

// parsePlayerLine parses a player line from the status response
// Format: <score> <ping> "<name>" [<clientNum>]
func parsePlayerLine(line string) (domain.PlayerStatus, error) {
	var player domain.PlayerStatus
	player.ClientNum = -1

	quoteStart := strings.Index(line, "\"")
	quoteEnd := strings.LastIndex(line, "\"")
	if quoteStart == -1 || quoteEnd <= quoteStart {
		return player, fmt.Errorf("no quoted name found")
	}

	player.Name = line[quoteStart+1 : quoteEnd]
	player.CleanName = domain.CleanQ3Name(player.Name)

	parts := strings.Fields(line[:quoteStart])
	if len(parts) >= 2 {
		player.Score, _ = strconv.Atoi(parts[0])
		player.Ping, _ = strconv.Atoi(parts[1])
	}
	if len(parts) >= 3 {
		player.Team, _ = strconv.Atoi(parts[2])
	}

	if remainder := strings.TrimSpace(line[quoteEnd+1:]); remainder != "" {
		if cn, err := strconv.Atoi(remainder); err == nil {
			player.ClientNum = cn
		}
	}

	return player, nil
}

// parseIntVar tries to parse an int from multiple possible var names
func parseIntVar(vars map[string]string, names ...string) (int, bool) {
	for _, name := range names {
		if val, ok := vars[name]; ok {
			if i, err := strconv.Atoi(val); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}
