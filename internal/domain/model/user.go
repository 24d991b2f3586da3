package model

// User — пользователь системы (внешняя сущность, потребляется
// только для квотной арифметики).
type User struct {
	// ID — идентификатор пользователя (sub из JWT)
	ID string
	// QuotaBytes — персональная квота в байтах, 0 = без ограничений
	QuotaBytes int64
}
