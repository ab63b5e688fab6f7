package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/user/moviecatalog/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Condition 删除条件，单列等值
type Condition struct {
	Column string
	Value  any
}

// CatalogRepository 面向 model.Resource 的通用增删改查。
// 表名与列名只来自模型的 gorm schema，调用方传入的名字仅用于查表校验。
type CatalogRepository struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewCatalogRepository(db *gorm.DB, validate *validator.Validate) *CatalogRepository {
	return &CatalogRepository{db: db, validate: validate}
}

// Read 按可选的等值过滤条件读取，结果为非 nil 切片
func (r *CatalogRepository) Read(ctx context.Context, res model.Resource, filter map[string]any) (any, error) {
	sch, err := r.schemaOf(res)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx)
	for _, col := range slices.Sorted(maps.Keys(filter)) {
		field, err := lookupColumn(sch, col)
		if err != nil {
			return nil, err
		}
		v, err := coerce(field, filter[col])
		if err != nil {
			return nil, err
		}
		q = q.Where(clause.Eq{Column: clause.Column{Name: field.DBName}, Value: v})
	}
	for _, pf := range sch.PrimaryFields {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: pf.DBName}})
	}

	list := res.NewList()
	if err := q.Find(list).Error; err != nil {
		return nil, classify(err)
	}
	return reflect.ValueOf(list).Elem().Interface(), nil
}

// Insert 校验列名后插入，返回含生成 ID 的记录。
// 合成主键的表会忽略调用方给出的 id。
func (r *CatalogRepository) Insert(ctx context.Context, res model.Resource, record map[string]any) (any, error) {
	sch, err := r.schemaOf(res)
	if err != nil {
		return nil, err
	}

	fields := maps.Clone(record)
	if !res.NaturalKey() {
		delete(fields, "id")
	}
	if err := checkColumns(sch, fields); err != nil {
		return nil, err
	}

	rec := res.NewRecord()
	if err := decode(sch, fields, rec); err != nil {
		return nil, err
	}
	if err := r.validate.Struct(rec); err != nil {
		return nil, validationError(sch, err)
	}

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, classify(err)
	}
	return rec, nil
}

// Update 按主键更新其余字段，返回更新后的记录
func (r *CatalogRepository) Update(ctx context.Context, res model.Resource, record map[string]any) (any, error) {
	sch, err := r.schemaOf(res)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(sch, record); err != nil {
		return nil, err
	}
	for _, pf := range sch.PrimaryFields {
		if _, ok := record[pf.DBName]; !ok {
			return nil, fmt.Errorf("%w: %s requires %s", ErrMissingID, sch.Table, pf.DBName)
		}
	}

	var cols, names []string
	for _, col := range slices.Sorted(maps.Keys(record)) {
		field := sch.FieldsByDBName[col]
		if field.PrimaryKey {
			continue
		}
		cols = append(cols, field.DBName)
		names = append(names, field.Name)
	}
	if len(cols) == 0 {
		return nil, ErrNothingToUpdate
	}

	rec := res.NewRecord()
	if err := decode(sch, record, rec); err != nil {
		return nil, err
	}
	if err := r.validate.StructPartial(rec, names...); err != nil {
		return nil, validationError(sch, err)
	}

	rv := reflect.ValueOf(rec).Elem()
	keys := make([]clause.Expression, 0, len(sch.PrimaryFields))
	for _, pf := range sch.PrimaryFields {
		v, zero := pf.ValueOf(ctx, rv)
		if zero {
			return nil, fmt.Errorf("%w: %s must not be empty", ErrMissingID, pf.DBName)
		}
		keys = append(keys, clause.Eq{Column: clause.Column{Name: pf.DBName}, Value: v})
	}

	result := r.db.WithContext(ctx).Model(rec).Select(cols).Updates(rec)
	if result.Error != nil {
		return nil, classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	fresh := res.NewRecord()
	if err := r.db.WithContext(ctx).Where(clause.And(keys...)).Take(fresh).Error; err != nil {
		return nil, classify(err)
	}
	return fresh, nil
}

// Delete 删除满足条件的行。删除电影时先在同一事务内删除其观看记录。
func (r *CatalogRepository) Delete(ctx context.Context, res model.Resource, cond Condition) (string, error) {
	sch, err := r.schemaOf(res)
	if err != nil {
		return "", err
	}
	if cond.Column == "" {
		return "", ErrMissingCondition
	}
	field, err := lookupColumn(sch, cond.Column)
	if err != nil {
		return "", err
	}
	v, err := coerce(field, cond.Value)
	if err != nil {
		return "", err
	}
	eq := clause.Eq{Column: clause.Column{Name: field.DBName}, Value: v}

	var affected int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res == model.ResourceFilms {
			var ids []uint
			if err := tx.Model(&model.Film{}).Where(eq).Pluck("id", &ids).Error; err != nil {
				return err
			}
			if len(ids) > 0 {
				if err := tx.Where("film_id IN ?", ids).Delete(&model.UserFilm{}).Error; err != nil {
					return err
				}
			}
		}

		result := tx.Where(eq).Delete(res.NewRecord())
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})
	if err != nil {
		return "", classify(err)
	}
	if affected == 0 {
		return "", fmt.Errorf("%w: no rows with %s = %v in table %q", ErrNoRowsMatched, field.DBName, cond.Value, sch.Table)
	}
	return fmt.Sprintf("rows with %s = %v deleted from table %q", field.DBName, cond.Value, sch.Table), nil
}

func (r *CatalogRepository) schemaOf(res model.Resource) (*schema.Schema, error) {
	if !res.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, string(res))
	}
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(res.NewRecord()); err != nil {
		return nil, fmt.Errorf("解析模型 %s 失败: %w", res, err)
	}
	return stmt.Schema, nil
}

// lookupColumn 只接受真实列；关联字段和不可序列化的字段（如密码）视为不存在
func lookupColumn(sch *schema.Schema, col string) (*schema.Field, error) {
	field, ok := sch.FieldsByDBName[col]
	if !ok || field.Tag.Get("json") == "-" {
		return nil, &UnknownColumnError{Table: sch.Table, Column: col}
	}
	return field, nil
}

func checkColumns(sch *schema.Schema, record map[string]any) error {
	for _, col := range slices.Sorted(maps.Keys(record)) {
		if _, err := lookupColumn(sch, col); err != nil {
			return err
		}
	}
	return nil
}

// decode 借助 JSON 标签（与列名一致）把通用记录转换为具体模型
func decode(sch *schema.Schema, fields map[string]any, dst any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return &InvalidValueError{Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if field, ok := sch.FieldsByDBName[typeErr.Field]; ok {
				return invalidValue(field, err)
			}
		}
		return &InvalidValueError{Err: err}
	}
	return nil
}

// validationError 把 validator 的错误转换为只含列名和规则的错误
func validationError(sch *schema.Schema, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &InvalidValueError{Err: err}
	}
	fe := fieldErrs[0]
	column := fe.StructField()
	if field, ok := sch.FieldsByName[fe.StructField()]; ok {
		column = field.DBName
	}
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return &InvalidValueError{Column: column, Expected: "a value satisfying " + rule, Err: err}
}

func invalidValue(field *schema.Field, err error) *InvalidValueError {
	return &InvalidValueError{Column: field.DBName, Expected: expectedType(field), Err: err}
}

func expectedType(field *schema.Field) string {
	switch field.DataType {
	case schema.Int:
		return "an integer"
	case schema.Uint:
		return "a non-negative integer"
	case schema.Float:
		return "a number"
	case schema.Bool:
		return "a boolean"
	case schema.Time:
		return "a timestamp"
	default:
		return "a string"
	}
}

// coerce 把查询字符串或 JSON 数字转换为列的类型；条件只接受单个标量值
func coerce(field *schema.Field, v any) (any, error) {
	var (
		out any
		err error
	)
	switch val := v.(type) {
	case nil:
		out = nil
	case string:
		switch field.DataType {
		case schema.Int:
			out, err = strconv.ParseInt(val, 10, 64)
		case schema.Uint:
			out, err = strconv.ParseUint(val, 10, 64)
		case schema.Float:
			out, err = strconv.ParseFloat(val, 64)
		case schema.Bool:
			out, err = strconv.ParseBool(val)
		default:
			out = val
		}
	case float64:
		switch field.DataType {
		case schema.Int, schema.Uint:
			if val != math.Trunc(val) || (field.DataType == schema.Uint && val < 0) {
				err = fmt.Errorf("%v is not a valid integer", val)
			}
			out = int64(val)
		case schema.String:
			err = fmt.Errorf("expected a string, got %v", val)
		default:
			out = val
		}
	default:
		switch reflect.ValueOf(v).Kind() {
		case reflect.Bool,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			out = v
		default:
			// 数组会变成 IN (...)，对象无法比较，都不是单列等值条件
			err = fmt.Errorf("unsupported condition value of type %T", v)
		}
	}
	if err != nil {
		return nil, invalidValue(field, err)
	}
	return out, nil
}
