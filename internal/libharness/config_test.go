package libharness

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRewriteConfig(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		ov    Overrides
		want  []string
	}{
		{
			name:  "order preserving with verbatim passthrough",
			lines: []string{"# comment", "rest_api_port=1", "miner_address=abc"},
			ov:    Overrides{RestAPIPort: 9},
			want:  []string{"# comment", "rest_api_port=9", "miner_address=abc", "daemon=false"},
		},
		{
			name:  "daemon forced off when present",
			lines: []string{"daemon=true", "log_level=debug"},
			ov:    Overrides{},
			want:  []string{"daemon=false", "log_level=debug"},
		},
		{
			name:  "daemon synthesized when absent",
			lines: []string{"log_level=debug"},
			ov:    Overrides{},
			want:  []string{"log_level=debug", "daemon=false"},
		},
		{
			name:  "missing override keys appended in order",
			lines: []string{"rest_api_port=28443"},
			ov:    Overrides{LogDir: "/w/logs", DataDir: "/w/data", RestAPIPort: 9000, P2PPort: 9100},
			want: []string{
				"rest_api_port=9000",
				"log_dir=/w/logs",
				"data_dir=/w/data",
				"p2p_port=9100",
				"daemon=false",
			},
		},
		{
			name:  "unset overrides leave template lines untouched",
			lines: []string{"rest_api_port=28443", "p2p_port=28333"},
			ov:    Overrides{LogDir: "/w/logs"},
			want:  []string{"rest_api_port=28443", "p2p_port=28333", "log_dir=/w/logs", "daemon=false"},
		},
		{
			name:  "whitespace around keys still matches",
			lines: []string{"  rest_api_port = 28443  "},
			ov:    Overrides{RestAPIPort: 9000},
			want:  []string{"rest_api_port=9000", "daemon=false"},
		},
		{
			name:  "lines without separator pass through",
			lines: []string{"", "not a setting", "rest_api_port=1"},
			ov:    Overrides{RestAPIPort: 2},
			want:  []string{"", "not a setting", "rest_api_port=2", "daemon=false"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := RewriteConfig(test.lines, test.ov)
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("RewriteConfig(%v) -> %v, want %v", test.lines, got, test.want)
			}
		})
	}
}

func TestRewriteConfigIsPure(t *testing.T) {
	lines := []string{"rest_api_port=1", "a=b"}
	RewriteConfig(lines, Overrides{RestAPIPort: 9})
	if !reflect.DeepEqual(lines, []string{"rest_api_port=1", "a=b"}) {
		t.Errorf("RewriteConfig mutated its input: %v", lines)
	}
}

func TestMaterializeConfig(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "blockweave.conf")
	content := "# blockweave config\nrest_api_port=28443\ndaemon=true\n"
	if err := os.WriteFile(template, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "node0.conf")
	ov := Overrides{RestAPIPort: 9000, LogDir: filepath.Join(dir, "logs")}
	if err := MaterializeConfig(template, dest, ov); err != nil {
		t.Fatalf("MaterializeConfig: %v", err)
	}

	out, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	want := []string{
		"# blockweave config",
		"rest_api_port=9000",
		"daemon=false",
		"log_dir=" + filepath.Join(dir, "logs"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("materialized config %v, want %v", got, want)
	}
}

func TestMaterializeConfigMissingTemplate(t *testing.T) {
	dir := t.TempDir()
	err := MaterializeConfig(filepath.Join(dir, "nope.conf"), filepath.Join(dir, "out.conf"), Overrides{})
	if !errors.Is(err, ErrConfigMissing) {
		t.Errorf("MaterializeConfig with missing template -> %v, want ErrConfigMissing", err)
	}
}
