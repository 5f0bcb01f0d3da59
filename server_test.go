package main_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	gpiocount "gregoryjjb/gpiocount"
	"gregoryjjb/gpiocount/controller"
	"gregoryjjb/gpiocount/gpio/gpiotest"
)

func newTestServer(t *testing.T, invalid ...uint) (*httptest.Server, *controller.Controller) {
	hw := gpiotest.New(invalid...)
	ctrl := controller.New(hw, controller.Options{})
	t.Cleanup(func() { ctrl.Close() })

	srv := httptest.NewServer(gpiocount.NewRouter(gpiocount.BuildInfo{Version: "0.0.0"}, ctrl))
	t.Cleanup(srv.Close)
	return srv, ctrl
}

func doRequest(t *testing.T, method, url, body string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestAttributeEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	attr := srv.URL + "/api/attr/"

	status, body := doRequest(t, http.MethodGet, attr+"value", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0\n", body)

	status, _ = doRequest(t, http.MethodPut, attr+"gpio_leds", "4,17,27\n")
	assert.Equal(t, http.StatusNoContent, status)

	status, body = doRequest(t, http.MethodGet, attr+"gpio_leds", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "4,17,27\n", body)

	status, _ = doRequest(t, http.MethodPost, attr+"increment", "1")
	assert.Equal(t, http.StatusNoContent, status)

	_, body = doRequest(t, http.MethodGet, attr+"value", "")
	assert.Equal(t, "1\n", body)

	status, _ = doRequest(t, http.MethodPut, attr+"max_value", "40")
	assert.Equal(t, http.StatusNoContent, status)
	_, body = doRequest(t, http.MethodGet, attr+"max_value", "")
	assert.Equal(t, "40\n", body)
}

func TestAttributeErrorStatus(t *testing.T) {
	srv, _ := newTestServer(t, 13)
	attr := srv.URL + "/api/attr/"

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown attribute", http.MethodGet, "bogus", "", http.StatusNotFound},
		{"write only", http.MethodGet, "increment", "", http.StatusMethodNotAllowed},
		{"bad number", http.MethodPut, "value", "abc", http.StatusBadRequest},
		{"empty field", http.MethodPut, "gpio_leds", "5,,6", http.StatusBadRequest},
		{"too many digits", http.MethodPut, "gpio_leds", "1234", http.StatusBadRequest},
		{"invalid pin", http.MethodPut, "gpio_leds", "5,6,13", http.StatusBadRequest},
		{"invalid button", http.MethodPut, "gpio_button_increment", "13", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := doRequest(t, tt.method, attr+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestStateEndpoint(t *testing.T) {
	srv, ctrl := newTestServer(t)
	require.NoError(t, ctrl.AssignLEDs("1,2"))
	ctrl.Increment()

	status, body := doRequest(t, http.MethodGet, srv.URL+"/api/state", "")
	require.Equal(t, http.StatusOK, status)

	var s controller.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	assert.Equal(t, uint(1), s.Value)
	assert.Equal(t, uint(3), s.MaxPossible)
	assert.Equal(t, []uint{1, 2}, s.LEDs)
	assert.Equal(t, []bool{true, false}, s.Levels)
	assert.Nil(t, s.Button)
}

func TestHistoryEndpoint(t *testing.T) {
	srv, ctrl := newTestServer(t)
	require.NoError(t, ctrl.AssignLEDs("1"))
	ctrl.Increment()

	_, body := doRequest(t, http.MethodGet, srv.URL+"/api/history", "")

	var events []controller.Event
	require.NoError(t, json.Unmarshal([]byte(body), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "gpio_leds", events[0].Source)
	assert.Equal(t, "increment", events[1].Source)
}

func TestEventsWebsocket(t *testing.T) {
	srv, ctrl := newTestServer(t)
	require.NoError(t, ctrl.AssignLEDs("1,2,3"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() controller.Event {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var e controller.Event
		require.NoError(t, json.Unmarshal(data, &e))
		return e
	}

	first := read()
	assert.Equal(t, "state", first.Source)
	assert.Equal(t, uint(7), first.MaxPossible)

	ctrl.Increment()
	e := read()
	assert.Equal(t, "increment", e.Source)
	assert.Equal(t, uint(1), e.Value)
}
