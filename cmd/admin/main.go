package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"cvtailor/internal/config"
	"cvtailor/internal/database"
)

// 模板灌装工具：把按约定组织的目录（{slug}/CV.html、CL.html、styles.css）
// 写入模板表。已存在的 slug 会被更新。
func main() {
	var (
		dir     = flag.String("dir", "", "模板资产目录（必填）")
		dbHost  = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort  = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName  = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser  = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass  = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	root := strings.TrimSpace(*dir)
	if root == "" {
		log.Fatal("missing required flag: --dir")
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	if err := db.AutoMigrate(&database.Template{}); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		log.Fatalf("read template directory: %v", err)
	}

	seeded := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		slug := entry.Name()
		if err := seedTemplate(db, root, slug); err != nil {
			log.Fatalf("seed template %q: %v", slug, err)
		}
		seeded++
		fmt.Printf("seeded template %q\n", slug)
	}

	if seeded == 0 {
		log.Fatalf("no template directories found under %q", root)
	}
	fmt.Printf("done, %d template(s) seeded\n", seeded)
}

func seedTemplate(db *gorm.DB, root, slug string) error {
	cv := readAsset(root, slug, "CV.html")
	cl := readAsset(root, slug, "CL.html")
	css := readAsset(root, slug, "styles.css")
	if cv == nil && cl == nil && css == nil {
		return errors.New("directory contains none of CV.html, CL.html, styles.css")
	}

	tpl := database.Template{
		Slug:           slug,
		Name:           titleCase(slug),
		CVHTMLTemplate: cv,
		CLHTMLTemplate: cl,
		CSSStyles:      css,
		IsActive:       true,
	}

	var existing database.Template
	switch err := db.Where("slug = ?", slug).First(&existing).Error; {
	case err == nil:
		updates := map[string]any{
			"name":             tpl.Name,
			"cv_html_template": tpl.CVHTMLTemplate,
			"cl_html_template": tpl.CLHTMLTemplate,
			"css_styles":       tpl.CSSStyles,
			"is_active":        true,
		}
		return db.Model(&existing).Updates(updates).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(&tpl).Error
	default:
		return err
	}
}

func readAsset(root, slug, name string) *string {
	data, err := os.ReadFile(filepath.Join(root, slug, name))
	if err != nil {
		return nil
	}
	content := string(data)
	return &content
}

func titleCase(slug string) string {
	parts := strings.FieldsFunc(slug, func(r rune) bool { return r == '_' || r == '-' })
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}
