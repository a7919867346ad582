package utils

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func GetUUID() string {
	u1, err := uuid.NewUUID()
	if err != nil {
		logrus.Warnf("[GetUUID] fall back to random uuid, err = %v", err)
		return uuid.NewString()
	}
	return u1.String()
}

// GetSessionID 一次调试会话的id，只取uuid的前8位，用于日志关联
func GetSessionID() string {
	return GetUUID()[:8]
}
