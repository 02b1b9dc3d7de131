package asr

import "strings"

// DefaultLanguage is used when a request names none.
const DefaultLanguage = "中文"

// BaseLanguages are recognized by the base Fun-ASR model.
var BaseLanguages = []string{"中文", "英文", "日文"}

// MLTLanguages are recognized by the multilingual (MLT) models.
var MLTLanguages = []string{
	"中文", "英文", "粤语", "日文", "韩文", "越南语", "印尼语", "泰语", "马来语",
	"菲律宾语", "阿拉伯语", "印地语", "保加利亚语", "克罗地亚语", "捷克语",
	"丹麦语", "荷兰语", "爱沙尼亚语", "芬兰语", "希腊语", "匈牙利语", "爱尔兰语",
	"拉脱维亚语", "立陶宛语", "马耳他语", "波兰语", "葡萄牙语", "罗马尼亚语",
	"斯洛伐克语", "斯洛文尼亚语", "瑞典语",
}

// SupportedLanguages returns the languages a model accepts. Model names
// containing "MLT" are multilingual.
func SupportedLanguages(model string) []string {
	var langs []string
	if strings.Contains(strings.ToUpper(model), "MLT") {
		langs = MLTLanguages
	} else {
		langs = BaseLanguages
	}
	return append([]string(nil), langs...)
}
