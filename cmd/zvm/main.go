// zvm - a version-3 Z-machine interpreter and inspection tool.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/fictionkit/zvm/interp"
	"github.com/fictionkit/zvm/log"
	"github.com/fictionkit/zvm/machine"
	"github.com/fictionkit/zvm/story"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func main() {
	var (
		logLevel string
		debug    string
	)

	rootCmd := &cobra.Command{
		Use:     "zvm",
		Short:   "Z-machine story-file interpreter",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.InitLogger(logLevel)
			log.EnableModules(debug)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "warn", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&debug, "debug", "", "comma-separated log modules to enable")

	var maxSteps int
	runCmd := &cobra.Command{
		Use:   "run <story-file>",
		Short: "Play a story interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStory(args[0], maxSteps)
		},
	}
	runCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "stop after this many instructions (0 = unlimited)")

	disasmCmd := &cobra.Command{
		Use:   "disasm <story-file>",
		Short: "List every routine reachable from the initial program counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return disasmStory(args[0], cmd.OutOrStdout())
		},
	}

	objectsCmd := &cobra.Command{
		Use:   "objects <story-file>",
		Short: "Print the object tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printObjects(args[0], cmd.OutOrStdout())
		},
	}

	headerCmd := &cobra.Command{
		Use:   "header <story-file>",
		Short: "Dump the story header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printHeader(args[0], cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(runCmd, disasmCmd, objectsCmd, headerCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadMachine(path string) (*machine.Machine, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return machine.Load(blob)
}

func runStory(path string, maxSteps int) error {
	m, err := loadMachine(path)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	total := 0
	for {
		batch := 0
		if maxSteps > 0 {
			if batch = maxSteps - total; batch <= 0 {
				fmt.Fprintln(os.Stderr, "step limit reached")
				return nil
			}
		}
		taken, err := m.Run(batch)
		total += taken
		fmt.Print(m.ReadOutput())
		if err != nil {
			return err
		}

		switch m.State() {
		case interp.Halted:
			return nil
		case interp.WaitingForInput:
			line, err := rl.Readline()
			if err != nil { // io.EOF or interrupt
				return nil
			}
			if err := m.SendLine(line); err != nil {
				return err
			}
		}
	}
}

func disasmStory(path string, w io.Writer) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	st, err := story.Load(blob)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "; entry point\n")
	instrs, err := st.Reachable(st.InitialPC())
	for _, instr := range instrs {
		fmt.Fprintln(w, st.DisplayInstruction(instr))
	}
	if err != nil {
		log.Warn(log.DisasmMonitoring, "entry listing truncated", "err", err)
	}

	routines, err := st.AllRoutines()
	if err != nil {
		return err
	}
	log.Info(log.DisasmMonitoring, "routines discovered", "count", len(routines))
	for _, addr := range routines {
		listing, err := st.DisplayRoutine(addr)
		if err != nil {
			log.Warn(log.DisasmMonitoring, "routine listing truncated",
				"routine", fmt.Sprintf("0x%05x", addr), "err", err)
		}
		fmt.Fprintf(w, "\n%s", listing)
	}
	return nil
}

func printObjects(path string, w io.Writer) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	st, err := story.Load(blob)
	if err != nil {
		return err
	}
	count, err := st.ObjectCount()
	if err != nil {
		return err
	}

	tree := treeprint.New()
	tree.SetValue("objects")
	nodes := make(map[int]treeprint.Tree, count)
	var attach func(object int, parent treeprint.Tree) error
	attach = func(object int, parent treeprint.Tree) error {
		name, err := st.ObjectName(object)
		if err != nil {
			return err
		}
		if name == "" {
			name = "(anonymous)"
		}
		node := parent.AddBranch(fmt.Sprintf("%d. %s", object, name))
		nodes[object] = node
		child, err := st.Child(object)
		if err != nil {
			return err
		}
		for child != story.NullObject {
			if err := attach(child, node); err != nil {
				return err
			}
			if child, err = st.Sibling(child); err != nil {
				return err
			}
		}
		return nil
	}

	for object := 1; object <= count; object++ {
		parent, err := st.Parent(object)
		if err != nil {
			return err
		}
		if parent != story.NullObject {
			continue
		}
		if _, done := nodes[object]; done {
			continue
		}
		if err := attach(object, tree); err != nil {
			return err
		}
	}

	fmt.Fprint(w, tree.String())
	return nil
}

func printHeader(path string, w io.Writer) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	st, err := story.Load(blob)
	if err != nil {
		return err
	}
	hdr := st.HeaderFields()

	var sb strings.Builder
	fmt.Fprintf(&sb, "version        %d\n", hdr.Version)
	fmt.Fprintf(&sb, "release        %d\n", hdr.Release)
	fmt.Fprintf(&sb, "serial         %s\n", hdr.Serial)
	fmt.Fprintf(&sb, "initial pc     0x%04x\n", hdr.InitialPC)
	fmt.Fprintf(&sb, "high memory    0x%04x\n", hdr.HighMemory)
	fmt.Fprintf(&sb, "static memory  0x%04x\n", hdr.StaticMemory)
	fmt.Fprintf(&sb, "dictionary     0x%04x\n", hdr.Dictionary)
	fmt.Fprintf(&sb, "object table   0x%04x\n", hdr.ObjectTable)
	fmt.Fprintf(&sb, "globals        0x%04x\n", hdr.Globals)
	fmt.Fprintf(&sb, "abbreviations  0x%04x\n", hdr.Abbreviations)
	fmt.Fprintf(&sb, "file length    0x%05x\n", hdr.FileLength)
	fmt.Fprintf(&sb, "checksum       0x%04x\n", hdr.Checksum)
	fmt.Fprint(w, sb.String())
	return nil
}
