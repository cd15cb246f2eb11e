package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration and skips the suite when
// no server address is given.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.Addr == "" {
		s.T().Skip("SYNCX_E2E_ADDR not set")
	}
}

// Step prints a colorized header in the test log.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Client is one browser session: its cookie jar holds the session token.
type Client struct {
	suite *BaseSuite
	http  *http.Client
}

func (s *BaseSuite) NewClient() *Client {
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	return &Client{suite: s, http: &http.Client{Jar: jar, Timeout: 30 * time.Second}}
}

// Call sends a JSON request and decodes the JSON answer.
func (c *Client) Call(method, path string, body any) (int, map[string]any) {
	s := c.suite
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, s.Config.Addr+path, reader)
	s.Require().NoError(err)
	r.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.http.Do(r)
	s.Require().NoError(err)
	defer res.Body.Close()
	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(res.Body).Decode(&decoded))

	line := fmt.Sprintf("HTTP %s %s [%d] in %v", method, path, res.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		pretty, _ := json.MarshalIndent(decoded, "", "  ")
		line += "\nRESPONSE:\n" + string(pretty)
	}
	s.T().Log(line)
	return res.StatusCode, decoded
}

// Socket opens the realtime connection with the session cookie.
func (c *Client) Socket(ctx context.Context) *websocket.Conn {
	s := c.suite
	r, err := http.NewRequest(http.MethodGet, s.Config.Addr+"/socket", nil)
	s.Require().NoError(err)
	header := http.Header{}
	for _, cookie := range c.http.Jar.Cookies(r.URL) {
		header.Add("Cookie", cookie.String())
	}
	conn, _, err := websocket.Dial(ctx, strings.Replace(s.Config.Addr, "http", "ws", 1)+"/socket", &websocket.DialOptions{HTTPHeader: header})
	s.Require().NoError(err)
	return conn
}

// Await reads frames until one of the given event arrives.
func (s *BaseSuite) Await(ctx context.Context, conn *websocket.Conn, kind string) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for {
		var frame map[string]any
		s.Require().NoError(wsjson.Read(ctx, conn, &frame))
		if frame["event"] == kind {
			return frame
		}
	}
}
