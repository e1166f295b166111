package activity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"helpdesk/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	lokiPushPath  = "/loki/api/v1/push"
	lokiQueryPath = "/loki/api/v1/query_range"
)

// LokiClient ships audit entries to a Grafana Loki instance. Filter fields
// become stream labels so searches translate directly into LogQL selectors.
type LokiClient struct {
	client   *resty.Client
	endpoint string
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

type lokiPushBody struct {
	Streams []lokiStream `json:"streams"`
}

type lokiQueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Stream map[string]string `json:"stream"`
			Values [][]string        `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

func NewLokiClient(config models.ActivityConfiguration) IActivityLogger {
	client := resty.New().
		SetBaseURL(config.Loki.Endpoint).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)

	return &LokiClient{client: client, endpoint: config.Loki.Endpoint}
}

func (c *LokiClient) Close() error {
	return nil
}

func (c *LokiClient) Send(activity models.Activity) error {
	labels := map[string]string{"app": "helpdesk"}
	for k, v := range activity.Filter.Fields {
		labels[k] = v
	}

	line := map[string]any{"message": activity.Message}
	if activity.Object != nil {
		line["object"] = activity.Object
	}
	lineJSON, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to marshal activity line: %w", err)
	}

	body := lokiPushBody{
		Streams: []lokiStream{{
			Stream: labels,
			Values: [][]string{{activity.Filter.Timestamp, string(lineJSON)}},
		}},
	}

	resp, err := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(lokiPushPath)
	if err != nil {
		return fmt.Errorf("failed to push activity to loki: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("loki push returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

func (c *LokiClient) Search(searchCriteria map[string][]string) ([]map[string]any, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -30)

	resp, err := c.query(searchCriteria, start, now, "100")
	if err != nil {
		return nil, err
	}

	var activities []map[string]any
	for _, result := range resp.Data.Result {
		for _, value := range result.Values {
			entry := make(map[string]any, len(result.Stream)+2)
			for k, v := range result.Stream {
				entry[k] = v
			}
			entry["timestamp"] = value[0]

			var line map[string]any
			if json.Unmarshal([]byte(value[1]), &line) == nil {
				for k, v := range line {
					entry[k] = v
				}
			} else {
				entry["message"] = value[1]
			}

			activities = append(activities, entry)
		}
	}

	return activities, nil
}

func (c *LokiClient) CountByDay(searchCriteria map[string][]string, days int) ([]models.TimeSeriesPoint, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -days)

	resp, err := c.query(searchCriteria, start, now, "5000")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, result := range resp.Data.Result {
		for _, value := range result.Values {
			ns, parseErr := strconv.ParseInt(value[0], 10, 64)
			if parseErr != nil {
				zap.L().Warn("Skipping loki entry with bad timestamp", zap.String("value", value[0]))
				continue
			}
			day := time.Unix(0, ns).UTC().Format("2006-01-02")
			counts[day]++
		}
	}

	points := make([]models.TimeSeriesPoint, 0, len(counts))
	for i := days; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).UTC().Format("2006-01-02")
		if count, ok := counts[day]; ok {
			points = append(points, models.TimeSeriesPoint{Date: day, Count: count})
		}
	}

	return points, nil
}

func (c *LokiClient) query(searchCriteria map[string][]string, start, end time.Time, limit string) (*lokiQueryResponse, error) {
	resp, err := c.client.R().
		SetQueryParams(map[string]string{
			"query": buildLogQLSelector(searchCriteria),
			"start": strconv.FormatInt(start.UnixNano(), 10),
			"end":   strconv.FormatInt(end.UnixNano(), 10),
			"limit": limit,
		}).
		Get(lokiQueryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to query loki: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("loki query returned status %d: %s", resp.StatusCode(), resp.String())
	}

	var queryResp lokiQueryResponse
	if err = json.Unmarshal(resp.Body(), &queryResp); err != nil {
		return nil, fmt.Errorf("failed to decode loki response: %w", err)
	}

	return &queryResp, nil
}

func buildLogQLSelector(searchCriteria map[string][]string) string {
	selector := `{app="helpdesk"`
	for key, values := range searchCriteria {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			selector += fmt.Sprintf(`, %s=%q`, key, values[0])
			continue
		}
		pattern := values[0]
		for _, v := range values[1:] {
			pattern += "|" + v
		}
		selector += fmt.Sprintf(`, %s=~%q`, key, pattern)
	}
	return selector + "}"
}
