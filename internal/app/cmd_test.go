package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCommand_RegistersSubcommands(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})

	want := []Command{
		CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck,
		CommandCreateAdmin, CommandImport, CommandListProjects,
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{string(name)})
		if err != nil {
			t.Errorf("Find(%q) error = %v", name, err)
			continue
		}
		if cmd.Name() != string(name) {
			t.Errorf("Find(%q) = %q", name, cmd.Name())
		}
	}
}

func TestNewRootCommand_Flags(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})

	tests := []struct {
		command Command
		flag    string
		def     string
	}{
		{CommandCreateAdmin, "email", ""},
		{CommandCreateAdmin, "password", ""},
		{CommandCreateAdmin, "name", ""},
		{CommandImport, "file", "db.json"},
		{CommandHealthcheck, "port", ""},
		{CommandMigrate, "down", "0"},
		{CommandMigrate, "status", "false"},
	}

	for _, tt := range tests {
		cmd, _, err := root.Find([]string{string(tt.command)})
		if err != nil {
			t.Fatalf("Find(%q) error = %v", tt.command, err)
		}
		f := cmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Errorf("%s should have --%s", tt.command, tt.flag)
			continue
		}
		if tt.def != "" && f.DefValue != tt.def {
			t.Errorf("%s --%s default = %q, want %q", tt.command, tt.flag, f.DefValue, tt.def)
		}
	}
}

func TestHealthcheckPort_DefaultsFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	root := NewRootCommand(&bytes.Buffer{})

	cmd, _, err := root.Find([]string{string(CommandHealthcheck)})
	if err != nil {
		t.Fatalf("Find error = %v", err)
	}
	if got := cmd.Flags().Lookup("port").DefValue; got != "9999" {
		t.Errorf("port default = %q, want 9999", got)
	}
}

func TestRun_UnknownCommand_ReturnsError(t *testing.T) {
	var buf bytes.Buffer
	if err := Run(&buf, []string{"unknown"}); err == nil {
		t.Fatal("unknown command should return error")
	}
}

func TestRun_MigrateNegativeDown_ReturnsError(t *testing.T) {
	var buf bytes.Buffer
	err := Run(&buf, []string{"migrate", "--down=-1"})
	if err == nil {
		t.Fatal("negative --down should return error")
	}
	if !strings.Contains(err.Error(), "--down") {
		t.Errorf("error = %v, want mention of --down", err)
	}
}

func TestRun_MigrateDownAndStatus_MutuallyExclusive(t *testing.T) {
	var buf bytes.Buffer
	if err := Run(&buf, []string{"migrate", "--down=1", "--status"}); err == nil {
		t.Fatal("--down and --status together should return error")
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandServe, "serve"},
		{CommandWorker, "worker"},
		{CommandMigrate, "migrate"},
		{CommandCreateAdmin, "create-admin"},
		{CommandImport, "import"},
		{CommandListProjects, "list-projects"},
	}

	for _, tt := range tests {
		if got := string(tt.cmd); got != tt.want {
			t.Errorf("Command(%q) string = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
