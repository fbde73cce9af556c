package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/rycus86/localbus/pkg/schedule"
	"github.com/rycus86/localbus/pkg/timetables"
)

var (
	requestSummary = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "localbus_request_duration_seconds",
		Help: "Summary of the time taken to serve HTTP requests",
	}, []string{"endpoint"})

	boardPage = template.Must(template.New("board").Parse(`<html>
<head>
	<title>Next bus {{ .DirectionLabel }}</title>
</head>
<body>
<h1>{{ .DirectionLabel }} ({{ .ScheduleType }})</h1>
{{ if .Notice }}<p>{{ .Notice }}</p>
{{ end }}{{ if .Offline }}<p>Offline: showing the {{ .Source }} timetable</p>
{{ end }}<div>
{{ if .HasNextBus }}	<span>Next bus: {{ .NextBus }} in {{ .RemainingText }} ({{ .Countdown }})</span><br/>
{{ else if .ServiceEnded }}	<span>Service has ended, first bus tomorrow at {{ .FirstBus }} in {{ .UntilFirstBusText }}</span><br/>
{{ else }}	<span>No departures</span><br/>
{{ end }}	<span>First bus: {{ .FirstBus }}</span><br/>
	<span>Last bus: {{ .LastBus }}</span><br/>
{{ if .Fare }}	<span>Fare: {{ .FareText }}, {{ .DurationMinutes }} min</span><br/>
{{ end }}</div>
</body>
</html>`))
)

func init() {
	prometheus.MustRegister(requestSummary)
}

func observed(endpoint string, handler http.Handler) http.Handler {
	summary := requestSummary.WithLabelValues(endpoint)

	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		reqStart := time.Now()
		defer func() { summary.Observe(time.Since(reqStart).Seconds()) }()

		handler.ServeHTTP(writer, request)
	})
}

type nextBusResponse struct {
	timetables.Board
	Source    timetables.Source `json:"source"`
	Offline   bool              `json:"offline"`
	Countdown string            `json:"countdown"`
}

// NextBus serves the departure board of one direction. The schedule type
// comes from the calendar unless the type query parameter overrides it.
func NextBus(snapshots func() *timetables.Snapshot, now func() time.Time) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		direction, ok := directionParam(writer, request)
		if !ok {
			return
		}

		snapshot := snapshots()
		if snapshot == nil {
			writeUnavailable(writer)
			return
		}

		current := now()

		var board timetables.Board
		if value := request.URL.Query().Get("type"); value != "" {
			scheduleType, err := schedule.ParseType(value)
			if err != nil {
				http.Error(writer, err.Error(), http.StatusBadRequest)
				return
			}

			board = timetables.NewBoard(snapshot.Document, direction, scheduleType, current)
		} else {
			board = timetables.NewBoardForToday(snapshot.Document, direction, current)
		}

		response := nextBusResponse{
			Board:     board,
			Source:    snapshot.Source,
			Offline:   snapshot.Source.Offline(),
			Countdown: board.CountdownText(),
		}

		accept := request.Header.Get("Accept")

		if strings.Contains(accept, "application/json") {
			writer.Header().Add("Cache-Control", "no-cache")
			writeJSON(writer, http.StatusOK, response)
		} else if strings.Contains(accept, "text/html") {
			writer.Header().Add("Content-Type", "text/html; charset=utf-8")
			writer.WriteHeader(http.StatusOK)

			if err := boardPage.Execute(writer, response); err != nil {
				log.Error().Err(err).Msg("Failed to render the board page")
			}
		} else {
			writer.Header().Add("Content-Type", "text/plain; charset=utf-8")
			writer.WriteHeader(http.StatusOK)

			writer.Write([]byte(BoardText(board)))
		}
	}
}

// BoardText renders a board the way the terminal commands print it.
func BoardText(board timetables.Board) string {
	var text strings.Builder

	fmt.Fprintf(&text, "%s (%s)\n", board.DirectionLabel, board.ScheduleType)

	if board.Notice != "" {
		fmt.Fprintf(&text, "! %s\n", board.Notice)
	}

	switch {
	case board.HasNextBus:
		fmt.Fprintf(&text, "Next bus: %s in %s (%s)\n", board.NextBus, board.RemainingText(), board.CountdownText())
	case board.ServiceEnded:
		fmt.Fprintf(&text, "Service has ended, first bus tomorrow at %s in %s\n", board.FirstBus, board.UntilFirstBusText())
	default:
		text.WriteString("No departures\n")
	}

	fmt.Fprintf(&text, "First bus: %s, last bus: %s\n", board.FirstBus, board.LastBus)

	return text.String()
}

func directionParam(writer http.ResponseWriter, request *http.Request) (timetables.Direction, bool) {
	params := httprouter.ParamsFromContext(request.Context())

	direction, err := timetables.ParseDirection(params.ByName("direction"))
	if err != nil {
		log.Debug().Err(err).Str("path", request.URL.Path).Msg("Direction not found")
		http.Error(writer, err.Error(), http.StatusNotFound)
		return "", false
	}

	return direction, true
}

func writeUnavailable(writer http.ResponseWriter) {
	log.Warn().Msg("No timetable available")
	http.Error(writer, timetables.ErrNoDataAvailable.Error(), http.StatusServiceUnavailable)
}

func writeJSON(writer http.ResponseWriter, status int, value interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)

	if err := json.NewEncoder(writer).Encode(value); err != nil {
		log.Error().Err(err).Msg("Failed to write the response")
	}
}
