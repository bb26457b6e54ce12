package providers

import (
	"fmt"
	"strings"
)

// ts_code格式为"代码.交易所"，如000001.SZ、600000.SH

// SplitTsCode 拆分ts_code为代码与交易所后缀
func SplitTsCode(tsCode string) (code, exchange string, err error) {
	parts := strings.Split(tsCode, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid ts_code: %q", tsCode)
	}
	return parts[0], strings.ToUpper(parts[1]), nil
}

// EastmoneySecID 转换为东方财富secid
// 上交所前缀1，深交所/北交所前缀0
func EastmoneySecID(tsCode string) (string, error) {
	code, exchange, err := SplitTsCode(tsCode)
	if err != nil {
		return "", err
	}
	if exchange == "SH" {
		return "1." + code, nil
	}
	return "0." + code, nil
}

// SinaSymbol 转换为新浪行情代码，如sh600000、sz000001
func SinaSymbol(tsCode string) (string, error) {
	code, exchange, err := SplitTsCode(tsCode)
	if err != nil {
		return "", err
	}
	return strings.ToLower(exchange) + code, nil
}

// GuessTsCode 为裸6位代码补全交易所后缀
// 6/9开头归沪市，4/8开头归北交所，其余归深市
func GuessTsCode(code string) string {
	if strings.Contains(code, ".") {
		return strings.ToUpper(code)
	}
	switch {
	case strings.HasPrefix(code, "6"), strings.HasPrefix(code, "9"):
		return code + ".SH"
	case strings.HasPrefix(code, "4"), strings.HasPrefix(code, "8"):
		return code + ".BJ"
	default:
		return code + ".SZ"
	}
}
