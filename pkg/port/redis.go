// The admin port speaks the Redis protocol (RESP) over a string-valued cache, so operators can inspect and prune a
// running cache with redis-cli: `redis-cli -p 6380 KEYS 'clients:*'` or `redis-cli -p 6380 INVALIDATE '^clients:'`.

package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nobletooth/fig/pkg/cache"
	"github.com/nobletooth/fig/pkg/scan"
	"github.com/nobletooth/fig/pkg/utils"
	"github.com/tidwall/redcon"
)

const RedisOk = "OK"

var address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    []string
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool     // Closes the connection after writing if true.
	writeNil        bool     // Writes a nil value if true.
	err             *string  // Error to return if set.
	writeInt        *int     // Writes an integer value if set.
	writeBulk       *string  // Writes a bulk string if set.
	writeArray      []string // Writes an array of bulk strings if non-nil.
	writeString     string   // Writes a simple string otherwise.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{writeNil: true}
}

func writeRedisInt(i int) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisBulk(s string) redisOutput {
	return redisOutput{writeBulk: &s}
}

func writeRedisArray(items []string) redisOutput {
	if items == nil {
		items = []string{}
	}
	return redisOutput{writeArray: items}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

func wrongArgs(command string) redisOutput {
	return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(command)))
}

// write sends the output to `conn`.
func (o redisOutput) write(conn redcon.Conn) {
	switch {
	case o.err != nil:
		conn.WriteError(*o.err)
	case o.writeNil:
		conn.WriteNull()
	case o.writeInt != nil:
		conn.WriteInt(*o.writeInt)
	case o.writeBulk != nil:
		conn.WriteBulkString(*o.writeBulk)
	case o.writeArray != nil:
		conn.WriteArray(len(o.writeArray))
		for _, item := range o.writeArray {
			conn.WriteBulkString(item)
		}
	default:
		conn.WriteString(o.writeString)
	}
}

type redisHandler struct {
	store cache.Layer[string]
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(store cache.Layer[string]) (*redisHandler, error) {
	if store == nil {
		return nil, errors.New("expected a non-nil cache")
	}
	return &redisHandler{store: store}, nil
}

// parseSetTTL parses the optional `EX seconds` / `PX milliseconds` arguments of SET.
func parseSetTTL(args []string) (time.Duration, error) {
	if len(args) == 0 {
		return 0, nil // Default TTL.
	}
	if len(args) != 2 {
		return 0, errors.New("syntax error")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return 0, errors.New("invalid expire time in 'set' command")
	}
	switch strings.ToUpper(args[0]) {
	case "EX":
		return time.Duration(amount) * time.Second, nil
	case "PX":
		return time.Duration(amount) * time.Millisecond, nil
	default:
		return 0, errors.New("syntax error")
	}
}

// info renders the INFO section of the cache.
func (rh *redisHandler) info() string {
	stats := rh.store.Stats()
	lines := []string{
		"# Server",
		"fig_version:" + utils.Version,
		"started:" + humanize.Time(utils.StartTime),
		"uptime_in_seconds:" + strconv.FormatInt(int64(utils.Uptime().Seconds()), 10),
		"# Keyspace",
		"keys:" + strconv.Itoa(stats.Size),
		"max_keys:" + strconv.Itoa(stats.MaxSize),
		"keys_human:" + humanize.Comma(int64(stats.Size)) + "/" + humanize.Comma(int64(stats.MaxSize)),
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func (rh *redisHandler) handle(ctx context.Context, cmd redisCommand) redisOutput {
	switch strings.ToUpper(cmd.command) {
	case "PING":
		if len(cmd.args) == 1 {
			return writeRedisBulk(cmd.args[0])
		}
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	case "SET":
		if len(cmd.args) < 2 {
			return wrongArgs(cmd.command)
		}
		ttl, err := parseSetTTL(cmd.args[2:])
		if err != nil {
			return writeRedisError(err)
		}
		rh.store.Set(cmd.args[0], cmd.args[1], ttl)
		return writeRedisString(RedisOk)
	case "GET":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.command)
		}
		if value, found := rh.store.Get(cmd.args[0]); found {
			return writeRedisBulk(value)
		}
		return writeRedisNil()
	case "DEL":
		if len(cmd.args) < 1 {
			return wrongArgs(cmd.command)
		}
		deletedCount := 0
		for _, key := range cmd.args {
			if rh.store.Delete(key) {
				deletedCount++
			}
		}
		return writeRedisInt(deletedCount)
	case "EXISTS":
		if len(cmd.args) < 1 {
			return wrongArgs(cmd.command)
		}
		existing := 0
		for _, key := range cmd.args {
			if rh.store.Has(key) {
				existing++
			}
		}
		return writeRedisInt(existing)
	case "KEYS":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.command)
		}
		if _, err := scan.CompileGlob(cmd.args[0]); err != nil {
			return writeRedisError(err)
		}
		return writeRedisArray(slices.Collect(scan.MatchGlob(cmd.args[0], slices.Values(rh.store.Stats().Keys))))
	case "DBSIZE":
		return writeRedisInt(rh.store.Stats().Size)
	case "FLUSHDB", "FLUSHALL":
		rh.store.Clear()
		return writeRedisString(RedisOk)
	case "INVALIDATE":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.command)
		}
		invalidated, err := rh.store.InvalidatePattern(cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		slog.InfoContext(ctx, "Invalidated keys through the admin port.", "pattern", cmd.args[0], "count", invalidated)
		return writeRedisInt(invalidated)
	case "INFO":
		return writeRedisBulk(rh.info())
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

// RunRedisServer serves the admin port over `store` until `ctx` is cancelled, then closes the store.
func RunRedisServer(ctx context.Context, store cache.Layer[string]) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(store)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: string(cmd.Args[0]), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			output := redisHandler.handle(ctx, command)
			output.write(conn)
			if output.closeConnection {
				if err := conn.Close(); err != nil {
					slog.Error("Failed to close connection.", "error", err)
				}
			}
		},
		/*accept*/ func(conn redcon.Conn) bool {
			slog.Debug("Accepted admin connection.", "remote", conn.RemoteAddr())
			return true
		},
		/*close*/ func(conn redcon.Conn, err error) {
			if err != nil {
				slog.Debug("Admin connection closed with error.", "remote", conn.RemoteAddr(), "error", err)
			}
		})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()
	slog.Info("Admin port is listening.", "address", *address)

	select {
	case <-ctx.Done():
		serverErr := redisServer.Close()
		storeErr := store.Close()
		if exitErr := errors.Join(serverErr, storeErr); exitErr != nil {
			return fmt.Errorf("failed to close fig: %w", exitErr)
		}
	case err := <-serverErrSignal:
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}
