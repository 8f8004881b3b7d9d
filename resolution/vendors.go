package resolution

import "strings"

// VendorConfig конфигурация поставщика.
// Таблица поставщиков неизменяема, создается один раз на процесс и
// передается в оркестратор при старте; никакого изменяемого глобального
// состояния.
type VendorConfig struct {
	// Key ключ поставщика в API запросах (сопоставляется без учета регистра)
	Key string
	// DisplayName отображаемое имя для ответов
	DisplayName string
	// SearchNamespace пространство каталожного индекса в сервисе векторного поиска
	SearchNamespace string
	// CorrectionsNamespace пространство подтвержденных исправлений
	CorrectionsNamespace string
	// SearchURLTemplate шаблон URL живого поиска, %s заменяется
	// на URL-экранированное описание
	SearchURLTemplate string
	// RealtimeWeight вес живой выдачи при выборе, 0..1.
	// При нуле живой поиск не выполняется вовсе.
	RealtimeWeight float64
	// CorrectionsEnabled использовать ли хранилище исправлений для этого поставщика
	CorrectionsEnabled bool
}

// DefaultVendors возвращает встроенную таблицу поставщиков электротехнических
// материалов. Таблица поддерживается вручную.
func DefaultVendors() []VendorConfig {
	return []VendorConfig{
		{
			Key:                  "graybar",
			DisplayName:          "Graybar",
			SearchNamespace:      "graybar-catalog",
			CorrectionsNamespace: "graybar-corrections",
			SearchURLTemplate:    "https://www.graybar.com/search/?text=%s",
			RealtimeWeight:       0.7,
			CorrectionsEnabled:   true,
		},
		{
			Key:                  "rexel",
			DisplayName:          "Rexel",
			SearchNamespace:      "rexel-catalog",
			CorrectionsNamespace: "rexel-corrections",
			SearchURLTemplate:    "https://www.rexelusa.com/s?q=%s",
			RealtimeWeight:       0.5,
			CorrectionsEnabled:   true,
		},
		{
			Key:                  "platt",
			DisplayName:          "Platt Electric",
			SearchNamespace:      "platt-catalog",
			CorrectionsNamespace: "platt-corrections",
			SearchURLTemplate:    "https://www.platt.com/search?text=%s",
			RealtimeWeight:       0.4,
			CorrectionsEnabled:   true,
		},
		{
			Key:                  "ces",
			DisplayName:          "City Electric Supply",
			SearchNamespace:      "ces-catalog",
			CorrectionsNamespace: "ces-corrections",
			SearchURLTemplate:    "https://www.cityelectricsupply.com/search?query=%s",
			RealtimeWeight:       0,
			CorrectionsEnabled:   true,
		},
		{
			Key:                  "wesco",
			DisplayName:          "Wesco",
			SearchNamespace:      "wesco-catalog",
			CorrectionsNamespace: "wesco-corrections",
			SearchURLTemplate:    "https://buy.wesco.com/search?q=%s",
			RealtimeWeight:       0,
			CorrectionsEnabled:   false,
		},
	}
}

// FindVendor ищет поставщика по ключу без учета регистра
func FindVendor(vendors []VendorConfig, key string) (VendorConfig, bool) {
	for _, v := range vendors {
		if strings.EqualFold(v.Key, key) {
			return v, true
		}
	}
	return VendorConfig{}, false
}
