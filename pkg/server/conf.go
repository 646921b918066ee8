package server

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crystal-mush/mushchat/pkg/chat"
)

// ChatConf holds the chat service configuration.
// Supports both YAML (.yaml/.yml) and legacy key/value text (.conf) formats.
type ChatConf struct {
	// --- Channels ---
	MaxChannels       int    `yaml:"max_channels"`
	MaxPlayerChannels int    `yaml:"max_player_channels"`
	ChannelCost       int    `yaml:"channel_cost"`
	ChannelTitleLen   int    `yaml:"channel_title_len"`
	ChannelFlags      string `yaml:"channel_flags"`
	ChatStripQuote    bool   `yaml:"chat_strip_quote"`
	NoisyCemit        bool   `yaml:"noisy_cemit"`
	MaxBufferBlocks   int    `yaml:"max_buffer_blocks"`

	// --- Economy ---
	MoneyNameSingular string `yaml:"money_name_singular"`
	MoneyNamePlural   string `yaml:"money_name_plural"`
	StartingMoney     int    `yaml:"starting_money"`

	// --- Persistence ---
	ChatDB       string `yaml:"chatdb"`        // channel snapshot file
	SQLDB        string `yaml:"sqldb"`         // scrollback archive
	Bolt         string `yaml:"bolt"`          // world objects and snapshot copy
	SaveInterval int    `yaml:"save_interval"` // seconds between saves, 0 disables

	// --- Backups ---
	ArchiveDir      string `yaml:"archive_dir"`
	ArchiveRetain   int    `yaml:"archive_retain"`   // archives kept after a backup, 0 keeps all
	ArchiveInterval int    `yaml:"archive_interval"` // seconds between automatic backups, 0 disables

	// --- Scrollback ---
	ScrollbackRetention int      `yaml:"scrollback_retention"` // seconds
	ScrollbackChannels  []string `yaml:"scrollback_channels"`  // archived channels, empty for all
	SQLTimeout          int      `yaml:"sql_timeout"`          // seconds
	HistoryLimit        int      `yaml:"history_limit"`        // max rows per @chan/history

	// --- Metrics ---
	MetricsAddr string `yaml:"metrics_addr"`

	// ConfPath is the file this configuration was loaded from.
	ConfPath string `yaml:"-"`

	// Includes records the files pulled in by legacy "include" lines, so the
	// watcher can follow them too.
	Includes []string `yaml:"-"`
}

// DefaultChatConf returns a ChatConf with stock defaults.
func DefaultChatConf() *ChatConf {
	opts := chat.DefaultOptions()
	return &ChatConf{
		MaxChannels:         opts.MaxChannels,
		MaxPlayerChannels:   opts.MaxPlayerChannels,
		ChannelCost:         opts.ChannelCost,
		ChannelTitleLen:     opts.TitleLen,
		ChannelFlags:        opts.DefaultPrivs,
		MaxBufferBlocks:     opts.MaxBufferBlocks,
		MoneyNameSingular:   opts.MoneySingular,
		MoneyNamePlural:     opts.MoneyPlural,
		StartingMoney:       1000,
		ChatDB:              "chatdb",
		SaveInterval:        3600,
		ArchiveDir:          "archives",
		ScrollbackRetention: 86400,
		SQLTimeout:          5,
		HistoryLimit:        50,
	}
}

// Options converts the configuration into directory tunables.
func (cc *ChatConf) Options() chat.Options {
	return chat.Options{
		MaxChannels:       cc.MaxChannels,
		MaxPlayerChannels: cc.MaxPlayerChannels,
		ChannelCost:       cc.ChannelCost,
		TitleLen:          cc.ChannelTitleLen,
		DefaultPrivs:      cc.ChannelFlags,
		MoneySingular:     cc.MoneyNameSingular,
		MoneyPlural:       cc.MoneyNamePlural,
		StripQuote:        cc.ChatStripQuote,
		NoisyCemit:        cc.NoisyCemit,
		MaxBufferBlocks:   cc.MaxBufferBlocks,
	}
}

// LoadChatConf loads a config file. Format is auto-detected by extension:
//   - .yaml / .yml  -> YAML format
//   - .conf / other -> legacy key/value text format
func LoadChatConf(path string) (*ChatConf, error) {
	var (
		cc  *ChatConf
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cc, err = loadChatConfYAML(path)
	default:
		cc, err = loadChatConfLegacy(path)
	}
	if err != nil {
		return nil, err
	}
	cc.ConfPath = path
	return cc, nil
}

// Files returns the configuration file and its includes.
func (cc *ChatConf) Files() []string {
	if cc.ConfPath == "" {
		return nil
	}
	return append([]string{cc.ConfPath}, cc.Includes...)
}

// --- YAML loader ---

func loadChatConfYAML(path string) (*ChatConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("conf: reading %s: %w", path, err)
	}

	cc := DefaultChatConf()
	if err := yaml.Unmarshal(data, cc); err != nil {
		return nil, fmt.Errorf("conf: parsing YAML %s: %w", path, err)
	}
	cc.resolvePaths(filepath.Dir(path))
	return cc, nil
}

// resolvePaths makes storage paths relative to the config directory.
func (cc *ChatConf) resolvePaths(baseDir string) {
	for _, p := range []*string{&cc.ChatDB, &cc.SQLDB, &cc.Bolt, &cc.ArchiveDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
}

// --- Legacy text loader ---

func loadChatConfLegacy(path string) (*ChatConf, error) {
	cc := DefaultChatConf()
	if err := cc.loadLegacyFile(path, 0); err != nil {
		return nil, fmt.Errorf("conf: %w", err)
	}
	cc.resolvePaths(filepath.Dir(path))
	return cc, nil
}

func (cc *ChatConf) loadLegacyFile(path string, depth int) error {
	if depth > 10 {
		return fmt.Errorf("include depth exceeded (circular include?)")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	baseDir := filepath.Dir(path)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		key, val := splitKeyVal(line)
		if key == "" {
			continue
		}

		switch strings.ToLower(key) {
		case "include":
			includePath := val
			if !filepath.IsAbs(includePath) {
				includePath = filepath.Join(baseDir, includePath)
			}
			if err := cc.loadLegacyFile(includePath, depth+1); err != nil {
				log.Printf("conf: warning: include %s: %v", includePath, err)
				continue
			}
			cc.Includes = append(cc.Includes, includePath)

		case "max_channels":
			cc.MaxChannels = atoi(val, cc.MaxChannels)
		case "max_player_channels":
			cc.MaxPlayerChannels = atoi(val, cc.MaxPlayerChannels)
		case "channel_cost", "chan_cost":
			cc.ChannelCost = atoi(val, cc.ChannelCost)
		case "channel_title_len":
			cc.ChannelTitleLen = atoi(val, cc.ChannelTitleLen)
		case "channel_flags":
			cc.ChannelFlags = val
		case "chat_strip_quote":
			cc.ChatStripQuote = parseBool(val)
		case "noisy_cemit":
			cc.NoisyCemit = parseBool(val)
		case "max_buffer_blocks":
			cc.MaxBufferBlocks = atoi(val, cc.MaxBufferBlocks)

		case "money_name_singular":
			cc.MoneyNameSingular = val
		case "money_name_plural":
			cc.MoneyNamePlural = val
		case "starting_money", "paystart":
			cc.StartingMoney = atoi(val, cc.StartingMoney)

		case "chatdb":
			cc.ChatDB = val
		case "sqldb":
			cc.SQLDB = val
		case "bolt":
			cc.Bolt = val
		case "save_interval", "dump_interval":
			cc.SaveInterval = atoi(val, cc.SaveInterval)

		case "archive_dir":
			cc.ArchiveDir = val
		case "archive_retain":
			cc.ArchiveRetain = atoi(val, cc.ArchiveRetain)
		case "archive_interval":
			cc.ArchiveInterval = atoi(val, cc.ArchiveInterval)

		case "scrollback_retention":
			cc.ScrollbackRetention = atoi(val, cc.ScrollbackRetention)
		case "scrollback_channel":
			if val != "" {
				cc.ScrollbackChannels = append(cc.ScrollbackChannels, val)
			}
		case "sql_timeout":
			cc.SQLTimeout = atoi(val, cc.SQLTimeout)
		case "history_limit":
			cc.HistoryLimit = atoi(val, cc.HistoryLimit)

		case "metrics_addr":
			cc.MetricsAddr = val

		default:
			// Unknown directives silently ignored for forward compatibility
		}
	}
	return scanner.Err()
}

// splitKeyVal splits a line on the first whitespace (space or tab).
func splitKeyVal(line string) (string, string) {
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' || line[i] == '\t' {
			return line[:i], strings.TrimSpace(line[i+1:])
		}
	}
	return line, ""
}

// --- Helper functions ---

func atoi(s string, fallback int) int {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "true" || s == "1" || s == "on"
}
