package model

// Resource 允许通过通用 CRUD 访问的表，名称即表名
type Resource string

const (
	ResourceUsers      Resource = "users"
	ResourceCategories Resource = "categories"
	ResourceFilms      Resource = "films"
	ResourceUserFilms  Resource = "user_films"
	ResourceSessions   Resource = "sessions"
)

type resourceEntry struct {
	newRecord func() any
	newList   func() any
	// naturalKey 为 true 时主键由调用方提供，插入时保留
	naturalKey bool
}

var resources = map[Resource]resourceEntry{
	ResourceUsers: {
		newRecord: func() any { return &User{} },
		newList:   func() any { return &[]User{} },
	},
	ResourceCategories: {
		newRecord: func() any { return &Category{} },
		newList:   func() any { return &[]Category{} },
	},
	ResourceFilms: {
		newRecord: func() any { return &Film{} },
		newList:   func() any { return &[]Film{} },
	},
	ResourceUserFilms: {
		newRecord:  func() any { return &UserFilm{} },
		newList:    func() any { return &[]UserFilm{} },
		naturalKey: true,
	},
	ResourceSessions: {
		newRecord:  func() any { return &Session{} },
		newList:    func() any { return &[]Session{} },
		naturalKey: true,
	},
}

// ParseResource 将路径片段解析为 Resource
func ParseResource(name string) (Resource, bool) {
	r := Resource(name)
	_, ok := resources[r]
	return r, ok
}

// Valid 是否为已注册的资源
func (r Resource) Valid() bool {
	_, ok := resources[r]
	return ok
}

// NewRecord 返回该资源对应模型的零值指针
func (r Resource) NewRecord() any {
	if entry, ok := resources[r]; ok {
		return entry.newRecord()
	}
	return nil
}

// NewList 返回该资源对应模型切片的指针（非 nil、长度为 0）
func (r Resource) NewList() any {
	if entry, ok := resources[r]; ok {
		return entry.newList()
	}
	return nil
}

// NaturalKey 主键是否由调用方提供
func (r Resource) NaturalKey() bool {
	return resources[r].naturalKey
}

// AllModels 迁移用的全部模型，按外键依赖排序
func AllModels() []any {
	return []any{&User{}, &Category{}, &Film{}, &UserFilm{}, &Session{}}
}
