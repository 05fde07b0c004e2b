// Command cli es una consola interactiva que usa los mismos servicios que la API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chirp/internal/config"
	"chirp/internal/db"
	"chirp/internal/domain"
	"chirp/internal/notify"
	"chirp/internal/repository"
	"chirp/internal/service"
	"chirp/internal/storage"
)

type console struct {
	reader     *bufio.Reader
	users      *service.UserService
	sessions   *service.SessionService
	resolver   *service.SessionResolver
	posts      *service.PostService
	credential string
	viewer     domain.Viewer
}

func main() {
	memory := flag.Bool("memory", false, "usar repositorios en memoria en lugar de Postgres")
	flag.Parse()

	ctx := context.Background()
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	var (
		userRepo    repository.UserRepository
		sessionRepo repository.SessionRepository
		postRepo    repository.PostRepository
		cfg         *config.Config
	)
	if *memory {
		cfg = &config.Config{
			SessionSecret:     "cli-memory-secret",
			PostRateLimit:     service.DefaultPostRateLimit,
			PostRateWindow:    service.DefaultPostRateWindow,
			AttachmentDir:     filepath.Join(os.TempDir(), "chirp-cli"),
			AttachmentBaseURL: "/attachments",
		}
		userRepo = repository.NewMemoryUserRepository()
		sessionRepo = repository.NewMemorySessionRepository()
		postRepo = repository.NewMemoryPostRepository()
	} else {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			log.Fatal(err)
		}
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatal(err)
		}
		userRepo = repository.NewPgUserRepository(pool)
		sessionRepo = repository.NewPgSessionRepository(pool)
		postRepo = repository.NewPgPostRepository(pool)
	}

	sink, err := storage.NewLocalSink(cfg.AttachmentDir, cfg.AttachmentBaseURL)
	if err != nil {
		log.Fatal(err)
	}

	cache := service.NewMemorySessionCache()
	signer := service.NewTokenSigner(cfg.SessionSecret)
	userSvc := service.NewUserService(logger, userRepo)

	c := &console{
		reader:   bufio.NewReader(os.Stdin),
		users:    userSvc,
		sessions: service.NewSessionService(logger, userSvc, sessionRepo, cache, signer, cfg.SessionTTL),
		resolver: service.NewSessionResolver(logger, signer, sessionRepo, userRepo, cache),
		posts: service.NewPostService(logger, postRepo, userRepo,
			service.NewPostRateLimiter(cfg.PostRateLimit, cfg.PostRateWindow), sink, notify.Nop{}),
		viewer: domain.Anonymous(),
	}
	c.run(ctx)
}

func (c *console) run(ctx context.Context) {
	for {
		fmt.Println()
		if c.viewer.Authenticated {
			fmt.Printf("===== chirp (@%s) =====\n", c.viewer.User.Handle)
		} else {
			fmt.Println("===== chirp (anónimo) =====")
		}
		fmt.Println("[1] Registrarse")
		fmt.Println("[2] Iniciar sesión")
		fmt.Println("[3] Publicar")
		fmt.Println("[4] Ver timeline")
		fmt.Println("[5] Ver posts de un usuario")
		fmt.Println("[6] Borrar post")
		fmt.Println("[7] Cerrar sesión")
		fmt.Println("[8] Salir")

		var err error
		switch c.prompt("Opción: ") {
		case "1":
			err = c.register(ctx)
		case "2":
			err = c.login(ctx)
		case "3":
			err = c.publish(ctx)
		case "4":
			err = c.timeline(ctx)
		case "5":
			err = c.userPosts(ctx)
		case "6":
			err = c.deletePost(ctx)
		case "7":
			err = c.logout(ctx)
		case "8":
			return
		default:
			fmt.Println("Opción inválida.")
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (c *console) prompt(label string) string {
	fmt.Print(label)
	line, _ := c.reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func (c *console) register(ctx context.Context) error {
	user, err := c.users.Register(ctx, service.RegisterInput{
		Handle:   c.prompt("Handle: "),
		Email:    c.prompt("Email: "),
		Password: c.prompt("Password: "),
	})
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		printFields(verr.Fields)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Usuario @%s creado.\n", user.Handle)
	return nil
}

func (c *console) login(ctx context.Context) error {
	result, err := c.sessions.Login(ctx, c.prompt("Handle: "), c.prompt("Password: "))
	if errors.Is(err, service.ErrInvalidCredentials) {
		fmt.Println("Credenciales inválidas.")
		return nil
	}
	if err != nil {
		return err
	}
	// Se resuelve igual que una request HTTP para ejercitar el mismo camino.
	viewer, err := c.resolver.Resolve(ctx, result.Credential)
	if err != nil {
		return err
	}
	c.credential = result.Credential
	c.viewer = viewer
	fmt.Printf("Sesión iniciada como @%s.\n", viewer.User.Handle)
	return nil
}

func (c *console) logout(ctx context.Context) error {
	if err := c.sessions.Logout(ctx, c.credential); err != nil {
		return err
	}
	c.credential = ""
	c.viewer = domain.Anonymous()
	fmt.Println("Sesión cerrada.")
	return nil
}

func (c *console) publish(ctx context.Context) error {
	if ok, err := c.posts.CanPost(ctx, c.viewer); err == nil && !ok && c.viewer.Authenticated {
		fmt.Println(c.posts.RateLimitMessage())
		return nil
	}

	input := service.CreatePostInput{Message: c.prompt("Mensaje: ")}
	if path := c.prompt("Adjunto (ruta, vacío para ninguno): "); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("leer adjunto: %w", err)
		}
		input.Attachment = &service.Attachment{Filename: filepath.Base(path), Data: data}
	}

	post, err := c.posts.Create(ctx, c.viewer, input)
	var verr *service.ValidationError
	switch {
	case err == nil:
		fmt.Printf("Publicado %s.\n", post.ID)
	case errors.Is(err, service.ErrUnauthenticated):
		fmt.Println("Primero inicia sesión.")
	case errors.Is(err, service.ErrRateLimited):
		fmt.Println(c.posts.RateLimitMessage())
	case errors.As(err, &verr):
		printFields(verr.Fields)
	default:
		return err
	}
	return nil
}

func (c *console) timeline(ctx context.Context) error {
	posts, err := c.posts.ListAll(ctx)
	if err != nil {
		return err
	}
	printPosts(posts)
	return nil
}

func (c *console) userPosts(ctx context.Context) error {
	posts, err := c.posts.ListByOwnerHandle(ctx, c.prompt("Handle: "))
	if errors.Is(err, service.ErrUserNotFound) {
		fmt.Println("No existe ese usuario.")
		return nil
	}
	if err != nil {
		return err
	}
	printPosts(posts)
	return nil
}

func (c *console) deletePost(ctx context.Context) error {
	err := c.posts.Delete(ctx, c.viewer, c.prompt("ID del post: "))
	if err != nil && errors.Is(err, service.ErrStorageFailure) {
		return err
	}
	fmt.Printf("success: %v\n", err == nil)
	return nil
}

func printPosts(posts []domain.Post) {
	if len(posts) == 0 {
		fmt.Println("(sin posts)")
		return
	}
	for _, p := range posts {
		line := fmt.Sprintf("%s  @%s  %s  [%s]", p.CreatedAt.Format("2006-01-02 15:04"), p.OwnerHandle, p.Message, p.ID)
		if p.HasAttachment() {
			line += "  " + p.AttachmentRef
		}
		fmt.Println(line)
	}
}

func printFields(fields map[string][]string) {
	for field, msgs := range fields {
		fmt.Printf("%s %s\n", field, strings.Join(msgs, ", "))
	}
}
