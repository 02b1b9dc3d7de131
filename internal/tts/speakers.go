package tts

import "strings"

const (
	DefaultSpeaker  = "Vivian"
	DefaultLanguage = "Chinese"
)

// Speaker is a preset voice.
type Speaker struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Language    string `json:"language" yaml:"language"`
}

var speakers = []Speaker{
	{Name: "Vivian", Description: "明亮、略带锐利的年轻女声", Language: "Chinese"},
	{Name: "Serena", Description: "温暖、温柔的年轻女声", Language: "Chinese"},
	{Name: "Uncle_Fu", Description: "成熟男声，低沉圆润", Language: "Chinese"},
	{Name: "Dylan", Description: "年轻的北京男声，清晰自然", Language: "Chinese"},
	{Name: "Eric", Description: "活泼的成都男声，略带沙哑", Language: "Chinese"},
	{Name: "Ryan", Description: "动感男声，节奏感强", Language: "English"},
	{Name: "Aiden", Description: "阳光美式男声，中音清晰", Language: "English"},
	{Name: "Ono_Anna", Description: "俏皮日本女声，轻盈灵动", Language: "Japanese"},
	{Name: "Sohee", Description: "温暖韩国女声，情感丰富", Language: "Korean"},
}

var languages = []string{
	"Chinese", "English", "Japanese", "Korean",
	"German", "French", "Russian", "Portuguese",
	"Spanish", "Italian",
}

// ListSpeakers returns the preset speakers.
func ListSpeakers() []Speaker {
	return append([]Speaker(nil), speakers...)
}

// LookupSpeaker finds a preset speaker, ignoring case.
func LookupSpeaker(name string) (Speaker, bool) {
	for _, s := range speakers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Speaker{}, false
}

// SupportedLanguages returns the synthesis languages.
func SupportedLanguages() []string {
	return append([]string(nil), languages...)
}

var emotionInstructions = map[string]string{
	"开心":        "用开心愉快的语气说",
	"愤怒":        "用愤怒的语气说",
	"悲伤":        "用悲伤的语气说",
	"惊讶":        "用惊讶的语气说",
	"温柔":        "用温柔的语气说",
	"兴奋":        "用兴奋的语气说",
	"平静":        "用平静的语气说",
	"happy":     "Very happy",
	"angry":     "Very angry",
	"sad":       "Very sad",
	"surprised": "Very surprised",
	"gentle":    "Very gentle",
}

// EmotionInstruction maps an emotion to a speaking instruction. Unknown
// emotions become "用<emotion>的语气说".
func EmotionInstruction(emotion string) string {
	emotion = strings.TrimSpace(emotion)
	if instr, ok := emotionInstructions[emotion]; ok {
		return instr
	}
	if instr, ok := emotionInstructions[strings.ToLower(emotion)]; ok {
		return instr
	}
	return "用" + emotion + "的语气说"
}
