package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"songbook/internal/client"
	"songbook/internal/config"
	"songbook/internal/models"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	c := client.New(cfg.APIURL, cfg.Timeout)

	if err := run(context.Background(), c, os.Args[1], os.Args[2:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type usageError string

func (e usageError) Error() string { return "usage: songctl " + string(e) }

func run(ctx context.Context, c *client.Client, cmd string, args []string, in io.Reader, out io.Writer) error {
	switch cmd {
	case "put":
		if len(args) < 1 {
			return usageError("put <id> < song.json")
		}
		song, err := readSong(in)
		if err != nil {
			return err
		}
		id, err := c.Put(ctx, args[0], song)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]string{"id": id})
	case "add":
		song, err := readSong(in)
		if err != nil {
			return err
		}
		id, err := c.Add(ctx, song)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]string{"id": id})
	case "replace":
		if len(args) < 1 {
			return usageError("replace <id> < song.json")
		}
		song, err := readSong(in)
		if err != nil {
			return err
		}
		id, err := c.Replace(ctx, args[0], song)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]string{"id": id})
	case "get":
		if len(args) < 1 {
			return usageError("get <id>")
		}
		song, err := c.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(out, song)
	case "delete":
		if len(args) < 1 {
			return usageError("delete <id>")
		}
		if err := c.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
		return nil
	case "list":
		return printSongs(out)(c.List(ctx))
	case "by-artist":
		if len(args) < 1 {
			return usageError("by-artist <artist>")
		}
		return printSongs(out)(c.ByArtist(ctx, args[0]))
	case "by-genre":
		if len(args) < 1 {
			return usageError("by-genre <genre>")
		}
		return printSongs(out)(c.ByGenre(ctx, args[0]))
	case "between-years":
		if len(args) < 2 {
			return usageError("between-years <start> <stop>")
		}
		start, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid start year %q", args[0])
		}
		stop, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid stop year %q", args[1])
		}
		return printSongs(out)(c.BetweenYears(ctx, start, stop))
	case "with-lyrics":
		if len(args) < 1 {
			return usageError("with-lyrics <words...>")
		}
		return printSongs(out)(c.WithLyrics(ctx, strings.Join(args, " ")))
	case "stats":
		stats, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, stats)
	case "health":
		if err := c.Health(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// readSong decodes a song from in with the same rules the server applies
func readSong(in io.Reader) (*models.Song, error) {
	body, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read song: %w", err)
	}
	return models.DecodeSong(body)
}

func printSongs(out io.Writer) func([]*models.Song, error) error {
	return func(songs []*models.Song, err error) error {
		if err != nil {
			return err
		}
		return printJSON(out, songs)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `songctl - command-line client for the songbook API

Usage:
  songctl put <id> < song.json       store a song under id
  songctl add < song.json            store a song under a generated id
  songctl replace <id> < song.json   overwrite an existing song
  songctl get <id>                   print a song
  songctl delete <id>                delete a song
  songctl list                       print every song
  songctl by-artist <artist>
  songctl by-genre <genre>
  songctl between-years <start> <stop>
  songctl with-lyrics <words...>
  songctl stats
  songctl health

Environment:
  SONGBOOK_API_URL      API base URL (default http://localhost:8080)
  SONGBOOK_API_TIMEOUT  request timeout (default 10s)
`)
}
