package eliza

import "sort"

// Backend описывает зарегистрированную модель.
type Backend struct {
	// Path добавляется к базовому адресу сервиса.
	Path string
	// IncludeModel требует передавать поле model в теле запроса.
	IncludeModel bool
	ModelValue   string
}

const (
	// ModelYandex: 32b aligned quantized, без поля model.
	ModelYandex = "yandex"
	// ModelDeepseek: communal deepseek-v3, с полем model.
	ModelDeepseek = "deepseek"
)

var defaultBackends = map[string]Backend{
	ModelYandex: {
		Path: "/internal/zeliboba/32b_aligned_quantized_202506/generative",
	},
	ModelDeepseek: {
		Path:         "/internal/zeliboba/communal-deepseek-v3-0324-in-yt/v1/chat/completions",
		IncludeModel: true,
		ModelValue:   "deepseek_v3",
	},
}

// Models возвращает имена поддерживаемых моделей.
func Models() []string {
	names := make([]string, 0, len(defaultBackends))
	for name := range defaultBackends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
