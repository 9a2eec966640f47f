package service

import "time"

// Clock 时间源，测试中可注入固定时间
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
