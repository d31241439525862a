/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel(" DEBUG "))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("loud"))
}

func TestNewLoggerIsRegistered(t *testing.T) {
	a := NewLogger("TEST-REG")
	b := NewLogger("TEST-REG")
	assert.Same(t, a, b)
	assert.True(t, SetLoggerLevel("TEST-REG", "error"))
	assert.Equal(t, logrus.ErrorLevel, a.GetLevel())
	assert.False(t, SetLoggerLevel("TEST-MISSING", "error"))
}

func TestLog4jFormatter(t *testing.T) {
	f := &Log4jColorFormatter{LoggerName: "DATABASE", NameWidth: 10}
	entry := &logrus.Entry{
		Time:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "connected",
		Data:    logrus.Fields{"b": 2, "a": 1},
	}
	out, err := f.Format(entry)
	require.NoError(t, err)
	line := string(out)
	assert.Contains(t, line, "2025-01-02 03:04:05.000")
	assert.Contains(t, line, "  DATABASE")
	assert.Contains(t, line, "connected a=1 b=2\n")
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "ADAPTER"}
	out, err := f.Format(&logrus.Entry{
		Time:    time.Now(),
		Level:   logrus.WarnLevel,
		Message: "slow",
		Data:    logrus.Fields{"err": errors.New("boom")},
	})
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.Equal(t, "warning", rec["level"])
	assert.Equal(t, "ADAPTER", rec["model"])
	assert.Equal(t, map[string]any{"err": "boom"}, rec["fields"])
}

func TestConfigureOutput(t *testing.T) {
	var buf bytes.Buffer
	ConfigureOutput(&buf)
	defer ConfigureOutput(nil)
	l := NewLogger("TEST-OUT")
	l.SetLevel(logrus.InfoLevel)
	l.Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("AB_TEST_BOOL", "true")
	t.Setenv("AB_TEST_INT", "x")
	assert.True(t, EnvDefaultBool("AB_TEST_BOOL", false))
	assert.Equal(t, 7, EnvDefaultInt("AB_TEST_INT", 7))
	assert.Equal(t, "d", EnvDefaultString("AB_TEST_UNSET", "d"))
}

func TestEnvDefaultDuration(t *testing.T) {
	t.Setenv("AB_TEST_DUR", "1m30s")
	t.Setenv("AB_TEST_SECS", "45")
	t.Setenv("AB_TEST_BAD", "soon")
	assert.Equal(t, 90*time.Second, EnvDefaultDuration("AB_TEST_DUR", 0))
	assert.Equal(t, 45*time.Second, EnvDefaultDuration("AB_TEST_SECS", 0))
	assert.Equal(t, time.Second, EnvDefaultDuration("AB_TEST_BAD", time.Second))
	assert.Equal(t, time.Minute, EnvDefaultDuration("AB_TEST_UNSET", time.Minute))
}
