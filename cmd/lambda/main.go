// CaiDan 菜单规划 Lambda 入口，经函数 URL 接收同步规划请求

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/caidan/caidan/internal/app"
	"github.com/caidan/caidan/internal/config"
	"github.com/caidan/caidan/internal/planning"
	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/logger"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

// planner 规划服务中 Lambda 用到的部分
type planner interface {
	Plan(ctx context.Context, req *planning.PlanRequest) (*planning.PlanResponse, error)
	Evaluate(ctx context.Context, req *planning.PlanRequest) (*planning.PlanResponse, error)
}

type functionHandler struct {
	planner planner
}

// handle 路径以 /evaluate 结尾时评估给定方案，否则规划
func (h *functionHandler) handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(errors.InvalidInput("body", "base64 解码失败"))
		}
		body = string(decoded)
	}

	var req planning.PlanRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return errResp(errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
	}

	run := h.planner.Plan
	if event.RawPath == "/evaluate" {
		run = h.planner.Evaluate
	}
	resp, err := run(ctx, &req)
	if err != nil {
		return errResp(err)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return errResp(err)
	}
	return events.LambdaFunctionURLResponse{StatusCode: 200, Headers: jsonHeader, Body: string(data)}, nil
}

func errResp(err error) (events.LambdaFunctionURLResponse, error) {
	appErr := errors.From(err)
	body, _ := json.Marshal(map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"fields":  appErr.Fields,
	})
	return events.LambdaFunctionURLResponse{StatusCode: appErr.HTTPStatus, Headers: jsonHeader, Body: string(body)}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: "json", Output: "stdout", TimeFormat: time.RFC3339})

	a, err := app.New(context.Background(), cfg, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化失败")
	}

	h := &functionHandler{planner: a.Service}
	lambda.Start(h.handle)
}
