package logger

import (
	"go.uber.org/zap"
)

// New 创建日志实例。开发模式输出彩色文本，生产模式输出 JSON。
func New(development bool) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Nop 返回丢弃所有输出的日志实例，测试中使用
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
