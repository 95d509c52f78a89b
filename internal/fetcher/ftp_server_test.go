package fetcher

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cellneigh/internal/resilience"
)

const regionGeoJSON = `{"type":"MultiPoint","coordinates":[[0,0],[2000,1000]]}`

// ftpStub is a loopback FTP server speaking just enough of RFC 959 for
// jlaffaye/ftp to log in and RETR a file over passive mode.
type ftpStub struct {
	ln  net.Listener
	cfg ftpStubConfig

	mu    sync.Mutex
	conns int

	wg sync.WaitGroup
}

type ftpStubConfig struct {
	files map[string]string
	// busy is the number of leading connections greeted with 421.
	busy int
	// abort cuts each transfer short and replies 451 instead of 226.
	abort bool
}

func newFTPStub(t *testing.T, cfg ftpStubConfig) *ftpStub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &ftpStub{ln: ln, cfg: cfg}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(func() {
		_ = ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *ftpStub) url(path string) string {
	return fmt.Sprintf("ftp://%s%s", s.ln.Addr(), path)
}

func (s *ftpStub) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *ftpStub) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *ftpStub) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	s.mu.Lock()
	s.conns++
	busy := s.conns <= s.cfg.busy
	abort := s.cfg.abort
	s.mu.Unlock()

	tp := textproto.NewConn(conn)
	if busy {
		_ = tp.PrintfLine("421 Too many users, try later")
		return
	}
	_ = tp.PrintfLine("220 cellneigh test server")

	var data net.Listener
	defer func() {
		if data != nil {
			_ = data.Close()
		}
	}()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

		switch strings.ToUpper(cmd) {
		case "USER":
			_ = tp.PrintfLine("331 Password required")
		case "PASS":
			_ = tp.PrintfLine("230 Logged in")
		case "FEAT":
			_ = tp.PrintfLine("211 No features")
		case "TYPE", "OPTS":
			_ = tp.PrintfLine("200 OK")
		case "EPSV":
			if data, err = net.Listen("tcp", "127.0.0.1:0"); err != nil {
				_ = tp.PrintfLine("425 Cannot open data connection")
				continue
			}
			_ = tp.PrintfLine("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port)
		case "RETR":
			body, ok := s.cfg.files[arg]
			if !ok || data == nil {
				_ = tp.PrintfLine("550 No such file")
				continue
			}
			_ = tp.PrintfLine("150 Opening data connection")
			dc, err := data.Accept()
			if err != nil {
				_ = tp.PrintfLine("425 Cannot open data connection")
				continue
			}
			if abort {
				_, _ = dc.Write([]byte(body[:len(body)/2]))
			} else {
				_, _ = dc.Write([]byte(body))
			}
			_ = dc.Close()
			_ = data.Close()
			data = nil
			if abort {
				_ = tp.PrintfLine("451 Transfer aborted")
			} else {
				_ = tp.PrintfLine("226 Transfer complete")
			}
		case "QUIT":
			_ = tp.PrintfLine("221 Bye")
			return
		default:
			_ = tp.PrintfLine("502 Not implemented")
		}
	}
}

func fastRetry(attempts int) resilience.Policy {
	return resilience.Policy{Attempts: attempts, Backoff: time.Millisecond}
}

func TestDownloadToFile_Success(t *testing.T) {
	srv := newFTPStub(t, ftpStubConfig{files: map[string]string{"/regions/county.geojson": regionGeoJSON}})
	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second, Retry: fastRetry(1)})

	dst := filepath.Join(t.TempDir(), "county.geojson")
	n, err := f.DownloadToFile(context.Background(), srv.url("/regions/county.geojson"), dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(regionGeoJSON)), n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, regionGeoJSON, string(data))
}

func TestDownloadToFile_RetriesBusyServer(t *testing.T) {
	srv := newFTPStub(t, ftpStubConfig{files: map[string]string{"/county.geojson": regionGeoJSON}, busy: 2})

	var retries []int
	retry := fastRetry(3)
	retry.OnRetry = func(attempt int, _ error) { retries = append(retries, attempt) }
	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second, Retry: retry})

	dst := filepath.Join(t.TempDir(), "county.geojson")
	n, err := f.DownloadToFile(context.Background(), srv.url("/county.geojson"), dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(regionGeoJSON)), n)
	assert.Equal(t, []int{1, 2}, retries)
	assert.Equal(t, 3, srv.connections())
}

func TestDownloadToFile_MissingFileNotRetried(t *testing.T) {
	srv := newFTPStub(t, ftpStubConfig{})
	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second, Retry: fastRetry(3)})

	dst := filepath.Join(t.TempDir(), "missing.geojson")
	_, err := f.DownloadToFile(context.Background(), srv.url("/missing.geojson"), dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp retrieve")
	assert.Equal(t, 1, srv.connections())
}

func TestDownloadToFile_AbortedTransferLeavesNoFile(t *testing.T) {
	srv := newFTPStub(t, ftpStubConfig{files: map[string]string{"/county.geojson": regionGeoJSON}, abort: true})
	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second, Retry: fastRetry(2)})

	dst := filepath.Join(t.TempDir(), "county.geojson")
	_, err := f.DownloadToFile(context.Background(), srv.url("/county.geojson"), dst)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err), err.Error())
	assert.Equal(t, 2, srv.connections())

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}
