package model

// DefaultCategories 首次启动时写入的默认分类
var DefaultCategories = []string{"Excellent movies", "Good movies", "Bad movies", "Unwatchable"}

// Category 分类
type Category struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"uniqueIndex;not null" validate:"required"`
	Description string `json:"description"`
}

// Film 电影
type Film struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"uniqueIndex;not null" validate:"required"`
	Rating      int       `json:"rating" gorm:"not null" validate:"gte=0,lte=10"`
	Genre       string    `json:"genre"`
	Year        *int      `json:"year" validate:"omitempty,gte=1870,lte=3000"`
	GenreID     *uint     `json:"genre_id"`
	AuthorID    *uint     `json:"author_id"`
	Description string    `json:"description"`
	Category    *Category `json:"-" gorm:"foreignKey:GenreID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Author      *User     `json:"-" gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// UserFilm 用户观看状态，(user_id, film_id) 唯一
type UserFilm struct {
	UserID  uint  `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	FilmID  uint  `json:"film_id" gorm:"primaryKey;autoIncrement:false;index"`
	Watched bool  `json:"watched" gorm:"not null"`
	User    *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Film    *Film `json:"-" gorm:"foreignKey:FilmID;constraint:OnDelete:CASCADE"`
}
