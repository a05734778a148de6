package discord

import (
	"fmt"
	"net/url"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const botScope = "bot"
const permissions = discordgo.PermissionManageRoles | discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
	discordgo.PermissionEmbedLinks | discordgo.PermissionAddReactions | discordgo.PermissionReadMessageHistory |
	discordgo.PermissionManageMessages

//Intents the bot subscribes to. Members and message content are privileged and must be enabled in the
//developer portal.
const intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildMembers | discordgo.IntentsMessageContent

//Gateway close codes which mean retrying cannot help
const (
	closeAuthenticationFailed = 4004
	closeDisallowedIntents    = 4014
)

//ErrPrivilegedIntents is returned by Open when discord refuses the requested gateway intents
var ErrPrivilegedIntents = errors.New("privileged gateway intents are not enabled for this bot")

//ErrAuthenticationFailed is returned by Open when discord rejects the bot token
var ErrAuthenticationFailed = errors.New("discord rejected the bot token")

const defaultCallTimeout = 10 * time.Second
const defaultMemberCacheSize = 1024

//EventHandler receives every gateway event the bot cares about. Handlers are called on their own goroutine.
type EventHandler interface {
	HandleReady(*discordgo.Ready)
	HandleResumed(*discordgo.Resumed)
	HandleDisconnect()
	HandleMessage(*discordgo.MessageCreate)
	HandleReactionAdd(*discordgo.MessageReaction)
	HandleReactionRemove(*discordgo.MessageReaction)
	HandleError(event string, err error)
}

//Options tune an EventSource
type Options struct {
	//Upper bound on every call made to the discord API
	CallTimeout time.Duration
	//Number of remotely fetched members to keep cached. Zero disables the cache.
	MemberCacheSize int
	Debug           bool
}

//EventSource represents a connection to the Discord gateway
type EventSource struct {
	discordClient *discordgo.Session
	handler       EventHandler
	callTimeout   time.Duration
	memberCache   *lru.ARCCache
}

//New creates an EventSource for the given bot token without connecting it
func New(token string, opts Options) (*EventSource, error) {
	dc, err := discordgo.New("Bot " + token)
	if err != nil {
		logrus.Warnf("Failed to create Discord gateway client due to %v", err)
		return nil, err
	}
	dc.ShouldRetryOnRateLimit = true
	dc.MaxRestRetries = 3
	dc.LogLevel = discordgo.LogWarning
	if opts.Debug {
		dc.LogLevel = discordgo.LogInformational
	}
	discordgo.Logger = discordLogger

	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	res := EventSource{
		discordClient: dc,
		callTimeout:   opts.CallTimeout,
	}
	if opts.MemberCacheSize > 0 {
		res.memberCache, err = lru.NewARC(opts.MemberCacheSize)
		if err != nil {
			return nil, err
		}
	}
	return &res, nil
}

//Open registers the handler against every event it handles and starts listening to the discord gateway
func (d *EventSource) Open(handler EventHandler) error {
	d.handler = handler
	dc := d.discordClient

	//Register event handlers
	dc.AddHandler(d.dispatchReady)
	dc.AddHandler(d.dispatchResumed)
	dc.AddHandler(d.dispatchDisconnect)
	dc.AddHandler(d.dispatchMessageCreateEvent)
	dc.AddHandler(d.dispatchReactionAdd)
	dc.AddHandler(d.dispatchReactionRemove)

	//Register intents
	dc.Identify.Intents = intents

	//Open a websocket connection
	err := dc.Open()
	if err != nil {
		logrus.Errorf("Failed to connect to discord websockets gateway; encountered error %v", err)
		return gatewayError(err)
	}
	return nil
}

func gatewayError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case closeDisallowedIntents:
			return errors.Wrap(ErrPrivilegedIntents, closeErr.Error())
		case closeAuthenticationFailed:
			return errors.Wrap(ErrAuthenticationFailed, closeErr.Error())
		}
	}
	return errors.Wrap(err, "failed to open discord gateway connection")
}

//BotAddURL generates a URL that can be used to add the bot to a server
func (d *EventSource) BotAddURL() (*url.URL, error) {
	user, err := d.discordClient.User("@me")
	if err != nil {
		return nil, err
	}
	clientID := user.ID

	url, err := url.Parse("https://discord.com/api/oauth2/authorize")
	if err != nil {
		return nil, err
	}
	q := url.Query()
	q.Set("client_id", clientID)
	q.Set("scope", botScope)
	q.Set("permissions", fmt.Sprintf("%d", permissions))
	url.RawQuery = q.Encode()

	return url, nil
}

//Close cleanly terminates the Discord connection
func (d *EventSource) Close() {
	logrus.Info("Terminating discord event listener...")
	_ = d.discordClient.Close()
}

//Session returns a handle to the underlying discordgo session
func (d *EventSource) Session() *discordgo.Session {
	return d.discordClient
}

//recoverHandler keeps a panicking handler from crashing the whole bot
func (d *EventSource) recoverHandler(event string) {
	if r := recover(); r != nil {
		d.handler.HandleError(event, fmt.Errorf("handler panicked: %v", r))
	}
}

func (d *EventSource) dispatchReady(s *discordgo.Session, r *discordgo.Ready) {
	defer d.recoverHandler("READY")
	d.handler.HandleReady(r)
}

func (d *EventSource) dispatchResumed(s *discordgo.Session, r *discordgo.Resumed) {
	defer d.recoverHandler("RESUMED")
	d.handler.HandleResumed(r)
}

func (d *EventSource) dispatchDisconnect(s *discordgo.Session, _ *discordgo.Disconnect) {
	defer d.recoverHandler("DISCONNECT")
	d.handler.HandleDisconnect()
}

func (d *EventSource) dispatchMessageCreateEvent(s *discordgo.Session, m *discordgo.MessageCreate) {
	//Ignore messages created by bot
	if m.Author == nil || m.Author.ID == d.SelfID() {
		return
	}
	defer d.recoverHandler("MESSAGE_CREATE")
	d.handler.HandleMessage(m)
}

func (d *EventSource) dispatchReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil {
		return
	}
	defer d.recoverHandler("MESSAGE_REACTION_ADD")
	d.handler.HandleReactionAdd(r.MessageReaction)
}

func (d *EventSource) dispatchReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.MessageReaction == nil {
		return
	}
	defer d.recoverHandler("MESSAGE_REACTION_REMOVE")
	d.handler.HandleReactionRemove(r.MessageReaction)
}

//discordLogger routes discordgo's internal logging into logrus
func discordLogger(msgL, caller int, format string, a ...interface{}) {
	entry := logrus.WithField("source", "discordgo")
	switch msgL {
	case discordgo.LogError:
		entry.Errorf(format, a...)
	case discordgo.LogWarning:
		entry.Warnf(format, a...)
	case discordgo.LogInformational:
		entry.Infof(format, a...)
	default:
		entry.Debugf(format, a...)
	}
}
