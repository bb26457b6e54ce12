package search

import "strings"

// A股代码前缀，其余代码段（基金、债券、B股等）不参与搜索结果
var aStockPrefixes = []string{
	"000", "001", "002", "003", // 深市主板/中小板
	"300", "301", // 创业板
	"600", "601", "603", "605", // 沪市主板
	"688", "689", // 科创板
	"430", "830", "831", "832", "833", "834", "835", "836", "837", "838", "839", // 北交所
	"870", "871", "872", "873",
}

// IsAStock 判断6位代码是否为A股
func IsAStock(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, p := range aStockPrefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// Board 根据代码划分板块
func Board(code string) string {
	switch {
	case strings.HasPrefix(code, "688"), strings.HasPrefix(code, "689"):
		return "科创板"
	case strings.HasPrefix(code, "300"), strings.HasPrefix(code, "301"):
		return "创业板"
	case strings.HasPrefix(code, "600"), strings.HasPrefix(code, "601"),
		strings.HasPrefix(code, "603"), strings.HasPrefix(code, "605"):
		return "沪市主板"
	case strings.HasPrefix(code, "002"), strings.HasPrefix(code, "003"):
		return "中小板"
	case strings.HasPrefix(code, "000"), strings.HasPrefix(code, "001"):
		return "深市主板"
	case strings.HasPrefix(code, "4"), strings.HasPrefix(code, "8"):
		return "北交所"
	default:
		return "其他"
	}
}
