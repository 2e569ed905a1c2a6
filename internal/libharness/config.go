package libharness

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Config override keys recognized in daemon config templates.
const (
	keyLogDir      = "log_dir"
	keyDataDir     = "data_dir"
	keyRestAPIPort = "rest_api_port"
	keyP2PPort     = "p2p_port"
	keyDaemon      = "daemon"
)

// Overrides holds the per-instance settings applied to a shared config
// template. Zero-valued fields leave the corresponding template lines
// untouched. Daemon mode is unconditionally forced off in the output so the
// launched process stays attached to its manager.
type Overrides struct {
	LogDir      string
	DataDir     string
	RestAPIPort int
	P2PPort     int
}

// values returns the recognized key/value pairs in a fixed order, with
// unset overrides omitted. The daemon key is always present.
func (ov Overrides) values() [][2]string {
	var kv [][2]string
	if ov.LogDir != "" {
		kv = append(kv, [2]string{keyLogDir, ov.LogDir})
	}
	if ov.DataDir != "" {
		kv = append(kv, [2]string{keyDataDir, ov.DataDir})
	}
	if ov.RestAPIPort != 0 {
		kv = append(kv, [2]string{keyRestAPIPort, fmt.Sprintf("%d", ov.RestAPIPort)})
	}
	if ov.P2PPort != 0 {
		kv = append(kv, [2]string{keyP2PPort, fmt.Sprintf("%d", ov.P2PPort)})
	}
	kv = append(kv, [2]string{keyDaemon, "false"})
	return kv
}

// splitConfigLine parses a key=value config line. Comments, blank lines and
// lines without '=' are passthrough and yield ok == false. Whitespace around
// key and value is trimmed, matching the daemon's own parser.
func splitConfigLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	i := strings.Index(trimmed, "=")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(trimmed[:i]), strings.TrimSpace(trimmed[i+1:]), true
}

// RewriteConfig applies overrides to an ordered sequence of template lines.
// Lines whose key matches an applied override are replaced in place; all
// other lines are copied verbatim in their original order. Override keys
// with no matching template line are appended at the end.
func RewriteConfig(lines []string, ov Overrides) []string {
	over := ov.values()
	byKey := make(map[string]string, len(over))
	for _, kv := range over {
		byKey[kv[0]] = kv[1]
	}

	out := make([]string, 0, len(lines)+len(over))
	seen := make(map[string]bool, len(over))
	for _, line := range lines {
		key, _, ok := splitConfigLine(line)
		if ok {
			if v, hit := byKey[key]; hit {
				out = append(out, key+"="+v)
				seen[key] = true
				continue
			}
		}
		out = append(out, line)
	}
	for _, kv := range over {
		if !seen[kv[0]] {
			out = append(out, kv[0]+"="+kv[1])
		}
	}
	return out
}

// MaterializeConfig derives an instance config file from the shared template,
// writing the result to destPath. The rewrite itself is pure (RewriteConfig);
// this wrapper adds the file I/O.
func MaterializeConfig(templatePath, destPath string, ov Overrides) error {
	data, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrConfigMissing, templatePath)
		}
		return errors.Wrap(err, "read config template")
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	out := RewriteConfig(lines, ov)
	content := strings.Join(out, "\n") + "\n"
	if err := os.WriteFile(destPath, []byte(content), 0644); err != nil {
		return errors.Wrap(err, "write instance config")
	}
	return nil
}
