package diagnosis

import "strings"

// riceDiseaseNames maps the rice model's English class labels to Vietnamese
// display strings. Keys are lowercase with spaces.
var riceDiseaseNames = map[string]string{
	"bacterial leaf blight or bacterial blight disease":  "Bệnh cháy lá do vi khuẩn",
	"bacterial leaf streak disease":                      "Bệnh vằn lá do vi khuẩn",
	"brown spot disease":                                 "Bệnh đốm nâu",
	"dirty panicle disease":                              "Bệnh bông bẩn",
	"grassy stunt disease":                               "Bệnh lùn cỏ",
	"narrow brown spot disease":                          "Bệnh đốm nâu hẹp",
	"ragged stunt disease":                               "Bệnh lùn rách",
	"rice blast disease":                                 "Bệnh đạo ôn",
	"sheath blight disease":                              "Bệnh khô vỏ lá",
	"tungro disease or yellow orange leaf disease":       "Bệnh tungro (lá vàng cam)",
}

// LocalizeDisease maps a raw rice disease label to its Vietnamese display
// string. Lookup is case-insensitive and treats underscores as spaces, since
// model versions differ in label formatting. Unmapped labels are returned
// unchanged; the function is total and never returns an empty string for
// non-empty input.
func LocalizeDisease(label string) string {
	if label == "" {
		return label
	}
	key := strings.ToLower(strings.ReplaceAll(label, "_", " "))
	if localized, ok := riceDiseaseNames[key]; ok {
		return localized
	}
	return label
}
