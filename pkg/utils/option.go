// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package utils

import (
	"fmt"
	"strconv"
)

// Option is a loosely typed bag of provider/model options.
type Option map[string]interface{}

func (o Option) GetString(key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", fmt.Errorf("option %q not present", key)
	}
	switch vl := v.(type) {
	case string:
		return vl, nil
	case fmt.Stringer:
		return vl.String(), nil
	default:
		return fmt.Sprintf("%v", vl), nil
	}
}

func (o Option) GetInt(key string) (int, error) {
	v, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("option %q not present", key)
	}
	switch vl := v.(type) {
	case int:
		return vl, nil
	case int64:
		return int(vl), nil
	case float64:
		return int(vl), nil
	case string:
		return strconv.Atoi(vl)
	default:
		return 0, fmt.Errorf("option %q is not an integer", key)
	}
}

func (o Option) GetBool(key string) (bool, error) {
	v, ok := o[key]
	if !ok {
		return false, fmt.Errorf("option %q not present", key)
	}
	switch vl := v.(type) {
	case bool:
		return vl, nil
	case string:
		return strconv.ParseBool(vl)
	default:
		return false, fmt.Errorf("option %q is not a boolean", key)
	}
}
