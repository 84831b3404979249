// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

// Package paramtable holds the runtime configuration of the compaction core.
// Values come from petrel.yaml when present, overridden by PETREL_* environment
// variables, falling back to each item's default.
package paramtable

import (
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/petrel-io/petrel/pkg/log"
)

const (
	defaultConfigName = "petrel"
	defaultConfigType = "yaml"
	envPrefix         = "petrel"
)

// BaseTable is the viper-backed key/value source behind every ParamItem.
type BaseTable struct {
	mu sync.RWMutex
	v  *viper.Viper
}

func NewBaseTable(configDirs ...string) *BaseTable {
	v := viper.New()
	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)
	for _, dir := range configDirs {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if len(configDirs) > 0 {
		if err := v.ReadInConfig(); err != nil {
			// A missing config file is fine, defaults apply.
			log.Info("paramtable running on defaults", zap.Error(err))
		}
	}
	return &BaseTable{v: v}
}

// Get returns the raw string value for key, empty when unset.
func (bt *BaseTable) Get(key string) string {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return cast.ToString(bt.v.Get(key))
}

// Set overrides a key at runtime, used by tests and hot-reload.
func (bt *BaseTable) Set(key string, value string) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.v.Set(key, value)
}

// ParamItem is one configuration entry with a key, default and doc string.
type ParamItem struct {
	Key          string
	DefaultValue string
	Doc          string

	table *BaseTable
}

func (pi *ParamItem) Init(bt *BaseTable) {
	pi.table = bt
}

// GetValue returns the configured string, or the default when unset.
func (pi *ParamItem) GetValue() string {
	if pi.table != nil {
		if v := pi.table.Get(pi.Key); v != "" {
			return v
		}
	}
	return pi.DefaultValue
}

func (pi *ParamItem) GetAsInt() int {
	return cast.ToInt(pi.GetValue())
}

func (pi *ParamItem) GetAsInt64() int64 {
	return cast.ToInt64(pi.GetValue())
}

func (pi *ParamItem) GetAsFloat() float64 {
	return cast.ToFloat64(pi.GetValue())
}

func (pi *ParamItem) GetAsBool() bool {
	return cast.ToBool(pi.GetValue())
}
