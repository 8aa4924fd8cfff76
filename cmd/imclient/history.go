package main

import (
	"context"
	"fmt"
	"iter"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vango-dev/imclient/internal/errors"
	"github.com/vango-dev/imclient/pkg/archive"
	"github.com/vango-dev/imclient/pkg/roaming"
)

type historyFlags struct {
	start  int64
	end    int64
	before int64
	limit  int
	export bool
	from   int64
}

func historyCmd(configDir *string) *cobra.Command {
	var f historyFlags

	cmd := &cobra.Command{
		Use:   "history (friend|group) <id>",
		Short: "Retrieve message history",
		Long: `Retrieve message history with a friend or a group.

Times are Unix seconds. --before walks backwards from a time (friends) or
a sequence number (groups) instead of using --start/--end.

Examples:
  imclient history friend 10002 --start 1700000000 --end 1700086400
  imclient history group 555 --before 1200 --limit 50
  imclient history friend 10002 --start 0 --end 1700086400 --export`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return errors.New("E140").WithDetail("id must be a number: " + args[1])
			}
			if args[0] != "friend" && args[0] != "group" {
				return errors.Newf(errors.CategoryCLI, "unknown history kind %q", args[0]).
					WithSuggestion("Use imclient history friend <account> or imclient history group <id>")
			}
			return runHistory(cmd.Context(), *configDir, args[0], id, f)
		},
	}

	cmd.Flags().Int64Var(&f.start, "start", 0, "Start time (Unix seconds)")
	cmd.Flags().Int64Var(&f.end, "end", 0, "End time (Unix seconds)")
	cmd.Flags().Int64Var(&f.before, "before", 0, "Walk backwards from this time or sequence")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Stop after this many messages")
	cmd.Flags().BoolVar(&f.export, "export", false, "Write the result to the configured archive")
	cmd.Flags().Int64Var(&f.from, "from", 0, "Only messages sent by this account")
	return cmd
}

func runHistory(ctx context.Context, dir, kind string, id int64, f historyFlags) error {
	a, err := loadApp(ctx, dir, 0)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.login(ctx); err != nil {
		return err
	}

	var filter roaming.Filter
	if f.from != 0 {
		filter = func(g *roaming.MessageGroup) bool { return g.From == f.from }
	}

	var seq iter.Seq2[*roaming.MessageGroup, error]
	switch {
	case kind == "friend" && f.before != 0:
		seq = a.client.FriendHistory(id).MessagesBefore(ctx, f.before, filter)
	case kind == "friend":
		seq = a.client.FriendHistory(id).MessagesIn(ctx, f.start, f.end, filter)
	case f.before != 0:
		seq = a.client.GroupHistory(id).MessagesBefore(ctx, f.before, filter)
	default:
		seq = a.client.GroupHistory(id).MessagesIn(ctx, f.start, f.end, filter)
	}
	seq = limit(printing(seq), f.limit)

	if !f.export {
		for _, err := range seq {
			if err != nil {
				return errors.New("E120").Wrap(err)
			}
		}
		return nil
	}

	archiver, err := a.archiver()
	if err != nil {
		return errors.New("E131").Wrap(err)
	}
	if archiver == nil {
		return errors.New("E140").WithDetail("--export needs archive.bucket or archive.dir in imclient.json")
	}
	obj, err := archive.Export(ctx, archiver, archive.Key(id, f.start, max(f.end, f.before)), seq, archive.Options{Gzip: a.cfg.Archive.Gzip})
	if obj != nil && obj.Count > 0 {
		success("Exported %d messages to %s", obj.Count, obj.Key)
	}
	if err != nil {
		return errors.New("E131").Wrap(err)
	}
	return nil
}

// printing prints every group as it passes through.
func printing(seq iter.Seq2[*roaming.MessageGroup, error]) iter.Seq2[*roaming.MessageGroup, error] {
	return func(yield func(*roaming.MessageGroup, error) bool) {
		for g, err := range seq {
			if err == nil {
				fmt.Printf("#%d [%s] %d: %s\n", g.Seq, stamp(g.Time), g.From, g.Text())
			}
			if !yield(g, err) {
				return
			}
		}
	}
}

// limit stops seq after n groups. n <= 0 means no limit.
func limit(seq iter.Seq2[*roaming.MessageGroup, error], n int) iter.Seq2[*roaming.MessageGroup, error] {
	if n <= 0 {
		return seq
	}
	return func(yield func(*roaming.MessageGroup, error) bool) {
		count := 0
		for g, err := range seq {
			if !yield(g, err) {
				return
			}
			if err == nil {
				count++
				if count >= n {
					return
				}
			}
		}
	}
}
