package setting

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/dbtime"
	"github.com/shopspring/decimal"
)

type DataType string

const (
	DataTypeInteger DataType = "integer"
	DataTypeBoolean DataType = "boolean"
	DataTypeDecimal DataType = "decimal"
	DataTypeTime    DataType = "time"
	DataTypeJSON    DataType = "json"
	DataTypeString  DataType = "string"
)

type Setting struct {
	Key         string
	Value       *string
	DataType    DataType
	Description *string
	Group       string
	UpdatedAt   time.Time
}

// Check reports whether raw parses as the setting's data type.
func (t DataType) Check(raw string) error {
	raw = strings.TrimSpace(raw)
	switch t {
	case DataTypeInteger:
		if _, err := strconv.Atoi(raw); err != nil {
			return fmt.Errorf("%q is not an integer", raw)
		}
	case DataTypeBoolean:
		if _, err := parseBool(raw); err != nil {
			return err
		}
	case DataTypeDecimal:
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("%q is not a decimal", raw)
		}
	case DataTypeTime:
		if _, err := dbtime.Parse(raw); err != nil {
			return fmt.Errorf("%q is not a time of day", raw)
		}
	case DataTypeJSON:
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("value is not valid JSON")
		}
	case DataTypeString:
	default:
		return fmt.Errorf("unknown data type %q", t)
	}
	return nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", raw)
}
