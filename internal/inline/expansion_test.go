package inline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// respServer speaks enough of the Redis protocol for GET, SET with EX
// and DEL. Anything else gets an error reply, which go-redis tolerates
// during its connection handshake.
type respServer struct {
	ln net.Listener

	mu       sync.Mutex
	values   map[string]string
	ttls     map[string]int
	failGets bool
}

func newRESPServer(t *testing.T) *respServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &respServer{ln: ln, values: map[string]string{}, ttls: map[string]int{}}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *respServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *respServer) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, s.reply(args)); err != nil {
			return
		}
	}
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "*") {
		return strings.Fields(line), nil
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		head, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimRight(head, "\r\n")[1:])
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func (s *respServer) reply(args []string) string {
	if len(args) == 0 {
		return "-ERR empty command\r\n"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch strings.ToUpper(args[0]) {
	case "GET":
		if s.failGets {
			return "-ERR unavailable\r\n"
		}
		v, ok := s.values[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
	case "SET":
		s.values[args[1]] = args[2]
		delete(s.ttls, args[1])
		for i := 3; i+1 < len(args); i++ {
			if strings.EqualFold(args[i], "ex") {
				s.ttls[args[1]], _ = strconv.Atoi(args[i+1])
			}
		}
		return "+OK\r\n"
	case "DEL":
		n := 0
		for _, k := range args[1:] {
			if _, ok := s.values[k]; ok {
				n++
			}
			delete(s.values, k)
			delete(s.ttls, k)
		}
		return fmt.Sprintf(":%d\r\n", n)
	}
	return "-ERR unknown command '" + args[0] + "'\r\n"
}

func (s *respServer) entry(key string) (string, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, s.ttls[key], ok
}

func TestRedisExpansionStore(t *testing.T) {
	srv := newRESPServer(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.ln.Addr().String(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	ctx := context.Background()

	store := NewRedisExpansionStore(rdb, "", "s1", time.Hour)
	if got, err := store.Expanded(ctx, "tasks-3"); err != nil || got {
		t.Fatalf("Expanded before set = %v, %v", got, err)
	}

	if err := store.SetExpanded(ctx, "tasks-3", true); err != nil {
		t.Fatalf("SetExpanded: %v", err)
	}
	v, ttl, ok := srv.entry("universes:expanded:s1:tasks-3")
	if !ok || v != "1" || ttl != 3600 {
		t.Fatalf("stored %q ttl %d present %v", v, ttl, ok)
	}
	if got, err := store.Expanded(ctx, "tasks-3"); err != nil || !got {
		t.Fatalf("Expanded after set = %v, %v", got, err)
	}

	other := NewRedisExpansionStore(rdb, "cards", "s2", time.Hour)
	if got, _ := other.Expanded(ctx, "tasks-3"); got {
		t.Fatalf("state leaked across sessions")
	}

	if err := store.SetExpanded(ctx, "tasks-3", false); err != nil {
		t.Fatalf("collapse: %v", err)
	}
	if _, _, ok := srv.entry("universes:expanded:s1:tasks-3"); ok {
		t.Fatalf("key kept after collapse")
	}
	if got, err := store.Expanded(ctx, "tasks-3"); err != nil || got {
		t.Fatalf("Expanded after collapse = %v, %v", got, err)
	}

	srv.mu.Lock()
	srv.failGets = true
	srv.mu.Unlock()
	if _, err := store.Expanded(ctx, "tasks-3"); err == nil {
		t.Fatalf("server error swallowed")
	}
}

func TestCardExpansionSurvivesRemountWithRedis(t *testing.T) {
	srv := newRESPServer(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.ln.Addr().String(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	ctx := context.Background()

	newPage := func() *Page {
		page, err := NewPage(PageOptions{
			API:       &fakeAPI{},
			Expansion: NewRedisExpansionStore(rdb, "", "browser", time.Hour),
			Location:  time.UTC,
		})
		if err != nil {
			t.Fatalf("NewPage: %v", err)
		}
		return page
	}

	card := newPage().MountTask(ctx, baseTask(), Lookups{Universes: map[uint]string{1: "Work", 2: "Home"}})
	card.Expand(ctx)

	again := newPage().MountTask(ctx, baseTask(), Lookups{Universes: map[uint]string{1: "Work", 2: "Home"}})
	if !again.Expanded() {
		t.Fatalf("expansion not restored from redis")
	}
}
